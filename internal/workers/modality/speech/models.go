package speech

// Metrics are the communication signals derived from a session's transcript.
type Metrics struct {
	TotalSegments  int     `mapstructure:"total_segments"`
	TotalDuration  float64 `mapstructure:"total_duration"`
	WordCount      int     `mapstructure:"word_count"`
	TechnicalTerms int     `mapstructure:"technical_terms"`
	WordsPerMinute float64 `mapstructure:"words_per_minute"`
	AvgConfidence  float64 `mapstructure:"avg_confidence"`
	Clarity        float64 `mapstructure:"clarity"`
	Fluency        float64 `mapstructure:"fluency"`
	TechnicalDepth float64 `mapstructure:"technical_depth"`
	Confidence     float64 `mapstructure:"confidence"`
}

var weights = map[string]float64{
	"clarity":         0.3,
	"technical_depth": 0.3,
	"fluency":         0.2,
	"confidence":      0.2,
}

func (m Metrics) scores() map[string]float64 {
	return map[string]float64{
		"clarity":         m.Clarity,
		"technical_depth": m.TechnicalDepth,
		"fluency":         m.Fluency,
		"confidence":      m.Confidence,
	}
}

var technicalVocabulary = map[string]struct{}{
	"algorithm": {}, "algorithms": {}, "complexity": {}, "recursion": {}, "recursive": {},
	"iterate": {}, "iterative": {}, "iteration": {}, "loop": {}, "array": {}, "list": {},
	"hash": {}, "hashmap": {}, "map": {}, "set": {}, "dictionary": {}, "tree": {}, "graph": {},
	"node": {}, "queue": {}, "stack": {}, "heap": {}, "pointer": {}, "index": {}, "function": {},
	"method": {}, "variable": {}, "class": {}, "object": {}, "interface": {}, "database": {},
	"cache": {}, "thread": {}, "concurrency": {}, "async": {}, "api": {}, "runtime": {},
	"memory": {}, "optimize": {}, "optimization": {}, "binary": {}, "sort": {}, "sorted": {},
	"search": {}, "linear": {}, "logarithmic": {}, "quadratic": {}, "constant": {},
	"edge": {}, "case": {}, "test": {}, "debug": {}, "refactor": {}, "big-o": {}, "o(n)": {},
	"o(1)": {}, "o(log": {}, "o(n^2)": {}, "dynamic": {}, "greedy": {}, "traversal": {},
	"bfs": {}, "dfs": {}, "invariant": {}, "string": {}, "integer": {}, "boolean": {},
}
