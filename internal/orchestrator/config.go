package orchestrator

import "time"

type Config struct {
	HardTimeout  time.Duration
	SoftTimeout  time.Duration
	QueueSize    int
	Concurrency  int
	WriteTimeout time.Duration

	// OnSoftTimeout runs once when a pipeline crosses SoftTimeout. The
	// pipeline keeps running until HardTimeout.
	OnSoftTimeout func(sessionID string)
}

func LoadConfig() *Config {
	return &Config{
		HardTimeout:  time.Hour,
		SoftTimeout:  50 * time.Minute,
		QueueSize:    64,
		Concurrency:  4,
		WriteTimeout: 10 * time.Second,
	}
}
