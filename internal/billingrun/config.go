package billingrun

import "time"

// WorkerConfig tunes the billing sweep loop.
type WorkerConfig struct {
	Enabled      bool
	BatchSize    int
	PollInterval time.Duration
	RunTimeout   time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Second
	}
	return c
}
