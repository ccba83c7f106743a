package aggregate

import "interview-evaluator/internal/models"

// Summary is the aggregated view carried in the evaluation output's
// findings and turned into the Evaluation record.
type Summary struct {
	OverallScore   float64            `mapstructure:"overall_score"`
	Scores         map[string]float64 `mapstructure:"scores"`
	Recommendation string             `mapstructure:"recommendation"`
	Confidence     float64            `mapstructure:"confidence"`
	Strengths      []string           `mapstructure:"strengths"`
	Weaknesses     []string           `mapstructure:"weaknesses"`
	OutputCount    int                `mapstructure:"output_count"`
}

var kindWeights = map[models.WorkerKind]float64{
	models.KindCoding:     0.35,
	models.KindSpeech:     0.20,
	models.KindEngagement: 0.15,
	models.KindReasoning:  0.30,
}

type tier struct {
	minScore       float64
	recommendation models.Recommendation
	confidence     float64
	reasoning      string
}

// tiers are checked in order; the last one catches everything.
var tiers = []tier{
	{75, models.RecommendHire, 0.9, "Candidate demonstrates strong technical and communication skills."},
	{60, models.RecommendMaybe, 0.7, "Candidate shows potential but has areas for improvement."},
	{0, models.RecommendNoHire, 0.85, "Candidate does not meet minimum requirements at this time."},
}

func tierFor(score float64) tier {
	for _, t := range tiers[:len(tiers)-1] {
		if score >= t.minScore {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// scoreLabels name each modality in the summary text.
var scoreLabels = []struct {
	kind  models.WorkerKind
	label string
}{
	{models.KindCoding, "Coding"},
	{models.KindSpeech, "Communication"},
	{models.KindReasoning, "Reasoning"},
	{models.KindEngagement, "Engagement"},
}
