package checkpointer

import "time"

// Config holds the configuration for the bookmark persister.
type Config struct {
	// Interval between bookmark writes. Zero persists every checkpoint as soon as it is taken,
	// which means once per fetched page.
	Interval     time.Duration
	WriteTimeout time.Duration // Timeout for each write operation
	MaxRetries   int           // Maximum number of retry attempts for failed writes
	RetryBackoff time.Duration // Backoff duration between retry attempts
}

// DefaultConfig persists after every page.
func DefaultConfig() Config {
	return Config{
		Interval:     0,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 300 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}
