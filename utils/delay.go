package utils

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Delay is the pause the fetch loop takes between two page requests.
type Delay interface {
	Wait(ctx context.Context) error
}

// SleepDelay pauses for a fixed duration. Zero or negative means no pause.
type SleepDelay time.Duration

// Wait blocks for the configured duration or until ctx is done.
func (d SleepDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoDelay never pauses.
type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context) error { return ctx.Err() }

// RateDelay spaces requests at most one per interval, measured from the
// previous request rather than from the end of its response.
type RateDelay struct {
	limiter *rate.Limiter
}

// NewRateDelay builds a RateDelay. A non-positive interval never pauses.
func NewRateDelay(interval time.Duration) *RateDelay {
	if interval <= 0 {
		return &RateDelay{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	// the first page was sent without asking the limiter; charge for it
	lim.Allow()
	return &RateDelay{limiter: lim}
}

// Wait blocks until the next request may go out.
func (d *RateDelay) Wait(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}

// Seconds converts a float number of seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
