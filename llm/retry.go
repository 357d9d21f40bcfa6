package llm

import "time"

// RetryConfig bounds how persistently a completion call is retried
// after a transient failure.
type RetryConfig struct {
	// MaxAttempts counts the first try plus retries.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier grows the delay after each failed attempt.
	BackoffMultiplier float64

	// MaxBackoff caps the grown delay.
	MaxBackoff time.Duration
}

// DefaultRetryConfig rides out the common provider hiccups (rate
// limits, brief 5xx windows) without stalling a chat request for long.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}
