package engagement

// Metrics summarise the vision samples of a session.
type Metrics struct {
	TotalSamples    int     `mapstructure:"total_metrics"`
	GazeSamples     int     `mapstructure:"gaze_samples"`
	EmotionSamples  int     `mapstructure:"emotion_samples"`
	PresenceSamples int     `mapstructure:"presence_samples"`
	Engagement      float64 `mapstructure:"engagement"`
	Attention       float64 `mapstructure:"attention"`
	Presence        float64 `mapstructure:"presence"`
}

var weights = map[string]float64{
	"engagement": 0.4,
	"attention":  0.3,
	"presence":   0.3,
}

func (m Metrics) scores() map[string]float64 {
	return map[string]float64{
		"engagement": m.Engagement,
		"attention":  m.Attention,
		"presence":   m.Presence,
	}
}

const (
	defaultAttention = 70.0
	defaultPresence  = 100.0
)

var focusedGaze = map[string]bool{"focused": true, "looking_at_screen": true}

var positiveEmotions = map[string]bool{"focused": true, "interested": true, "neutral": true}
