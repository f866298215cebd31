package simulation

import (
	"time"

	"github.com/valyala/fastrand"
)

// Built-in delay policy names
const (
	PolicyFixed  = "fixed"
	PolicyJitter = "jitter"
)

// DelayPolicy decides how long one production or consumption phase lasts
type DelayPolicy interface {
	Name() string
	Next(base time.Duration) time.Duration
}

// FixedDelay always returns the configured delay
type FixedDelay struct{}

func (FixedDelay) Name() string { return PolicyFixed }

func (FixedDelay) Next(base time.Duration) time.Duration { return base }

// JitterDelay spreads each phase uniformly within base ± Spread*base, at
// millisecond granularity.
type JitterDelay struct {
	Spread float64
}

func (JitterDelay) Name() string { return PolicyJitter }

func (j JitterDelay) Next(base time.Duration) time.Duration {
	width := int64(float64(base.Milliseconds()) * j.Spread)
	if width <= 0 {
		return base
	}

	offset := int64(fastrand.Uint32n(uint32(2*width+1))) - width
	d := base + time.Duration(offset)*time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}

func builtinPolicies() map[string]DelayPolicy {
	return map[string]DelayPolicy{
		PolicyFixed:  FixedDelay{},
		PolicyJitter: JitterDelay{Spread: 0.25},
	}
}
