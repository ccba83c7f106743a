package reasoning

// Metrics combine coding and speech signals into problem-solving scores.
type Metrics struct {
	CodeIterations       int     `mapstructure:"code_iterations"`
	ExecutionAttempts    int     `mapstructure:"execution_attempts"`
	SuccessfulExecutions int     `mapstructure:"successful_executions"`
	TotalWords           int     `mapstructure:"total_words"`
	SpeechSegments       int     `mapstructure:"speech_segments"`
	LogicalApproach      float64 `mapstructure:"logical_approach"`
	ProblemDecomposition float64 `mapstructure:"problem_decomposition"`
	ExplanationQuality   float64 `mapstructure:"explanation_quality"`
	Adaptability         float64 `mapstructure:"adaptability"`
}

var weights = map[string]float64{
	"logical_approach":      0.3,
	"problem_decomposition": 0.3,
	"explanation_quality":   0.2,
	"adaptability":          0.2,
}

func (m Metrics) scores() map[string]float64 {
	return map[string]float64{
		"logical_approach":      m.LogicalApproach,
		"problem_decomposition": m.ProblemDecomposition,
		"explanation_quality":   m.ExplanationQuality,
		"adaptability":          m.Adaptability,
	}
}
