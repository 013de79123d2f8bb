package resilience

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// FromSchedule builds a ScheduleConfig from second-granularity delays.
func FromSchedule(maxAttempts int, delaysSecs []float64) RetryConfig {
	delays := make([]time.Duration, 0, len(delaysSecs))
	for _, s := range delaysSecs {
		if s < 0 {
			s = 0
		}
		delays = append(delays, time.Duration(s*float64(time.Second)))
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return ScheduleConfig(maxAttempts, delays...)
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig for the
// named service. Cancelled calls never trip it, and state changes are logged.
func FromCircuitConfig(service string, failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	cfg.ShouldTrip = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	cfg.OnStateChange = func(from, to CircuitState) {
		zap.L().Warn("circuit breaker state changed",
			zap.String("service", service),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
