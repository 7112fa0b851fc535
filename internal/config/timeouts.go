package config

import "time"

// TimeoutConfig holds timeout settings for the HTTP server.
type TimeoutConfig struct {
	// Request bounds a single request handler, including its storage work.
	// Default: 60s
	Request time.Duration

	// Shutdown is how long in-flight requests get to finish on stop.
	// Default: 30s
	Shutdown time.Duration

	// ReadHeader bounds reading request headers.
	// Default: 10s
	ReadHeader time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Request:    60 * time.Second,
		Shutdown:   30 * time.Second,
		ReadHeader: 10 * time.Second,
	}
}

func loadTimeouts(l *Loader) TimeoutConfig {
	def := DefaultTimeoutConfig()
	return TimeoutConfig{
		Request:    positive(l.Duration("HTTP_REQUEST_TIMEOUT", def.Request), def.Request),
		Shutdown:   positive(l.Duration("HTTP_SHUTDOWN_TIMEOUT", def.Shutdown), def.Shutdown),
		ReadHeader: positive(l.Duration("HTTP_READ_HEADER_TIMEOUT", def.ReadHeader), def.ReadHeader),
	}
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
