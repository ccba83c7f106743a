package aggregate

import "time"

type Config struct {
	NarrativeBudget time.Duration
	Temperature     float64
	MaxTokens       int
	AgentVersion    string
}

func LoadConfig() *Config {
	return &Config{
		NarrativeBudget: 60 * time.Second,
		Temperature:     0.3,
		MaxTokens:       300,
		AgentVersion:    "dev",
	}
}
