package coding

// Metrics are the coding signals derived from one session's event stream.
type Metrics struct {
	TotalEvents          int     `mapstructure:"total_events"`
	ExecutionCount       int     `mapstructure:"execution_count"`
	SuccessfulExecutions int     `mapstructure:"successful_executions"`
	KeystrokeCount       int     `mapstructure:"keystroke_count"`
	SnapshotCount        int     `mapstructure:"snapshot_count"`
	ExecutionSuccessRate float64 `mapstructure:"execution_success_rate"`
	CodeQuality          float64 `mapstructure:"code_quality"`
	ProblemSolving       float64 `mapstructure:"problem_solving"`
	Efficiency           float64 `mapstructure:"efficiency"`
}

var weights = map[string]float64{
	"execution_success_rate": 0.3,
	"code_quality":           0.3,
	"problem_solving":        0.2,
	"efficiency":             0.2,
}

func (m Metrics) scores() map[string]float64 {
	return map[string]float64{
		"execution_success_rate": m.ExecutionSuccessRate,
		"code_quality":           m.CodeQuality,
		"problem_solving":        m.ProblemSolving,
		"efficiency":             m.Efficiency,
	}
}

// definitionMarkers indicate a function, method or class definition.
var definitionMarkers = []string{"def ", "func ", "function ", "class ", "=>", "fn ", "public static", "void "}
