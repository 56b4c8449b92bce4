// Package backoff provides delay strategies the worker pool uses when the
// store keeps failing. A healthy store is polled at the configured
// interval; a streak of storage errors stretches the wait so a broken
// backend is not hammered. All strategies are stateless and safe for
// concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the wait before the next poll given the length of the
// current failure streak. Streak 1 is the first consecutive failure.
type Strategy interface {
	Delay(streak int) time.Duration
}

// Constant waits the same duration regardless of streak length.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Linear grows the wait in proportion to the streak:
// min(Initial * streak, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

func (l *Linear) Delay(streak int) time.Duration {
	d := l.Initial * time.Duration(streak)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// Exponential doubles the wait with each consecutive failure:
// min(Initial * 2^(streak-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

func (e *Exponential) Delay(streak int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(streak-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ExponentialWithJitter draws a uniform value from [0, exponential cap].
// Full jitter spreads out workers that hit the same storage outage at
// the same moment.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

func (e *ExponentialWithJitter) Delay(streak int) time.Duration {
	ceiling := float64(e.Initial) * math.Pow(2, float64(streak-1))
	if e.Max > 0 && ceiling > float64(e.Max) {
		ceiling = float64(e.Max)
	}
	return time.Duration(rand.Float64() * ceiling) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// DefaultStrategy is the strategy the worker pool uses unless configured
// otherwise: exponential with full jitter, 1s initial, 30s cap.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(1*time.Second, 30*time.Second)
}
