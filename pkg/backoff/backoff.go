// Package backoff computes reconnect delays for the delivery worker.
//
// The delay grows polynomially with the number of consecutive failures and
// is capped: with the defaults (cap 15s, exponent 2) the sequence for
// failures 0,1,2,3,4,5,... is 0s,1s,4s,9s,15s,15s,...
package backoff

import (
	"context"
	"math"
	"time"
)

// Default policy values.
const (
	DefaultCap      = 15 * time.Second
	DefaultExponent = 2.0
	DefaultUnit     = time.Second
)

// Policy maps a consecutive-failure count to a delay.
type Policy struct {
	// Cap is the maximum delay.
	Cap time.Duration

	// Exponent is applied to the failure count.
	Exponent float64

	// Unit scales failures^Exponent into a duration. Tests shrink it to run
	// the same sequence quickly.
	Unit time.Duration
}

// DefaultPolicy returns the reference policy: min(15s, failures^2 seconds).
func DefaultPolicy() Policy {
	return Policy{
		Cap:      DefaultCap,
		Exponent: DefaultExponent,
		Unit:     DefaultUnit,
	}
}

// Delay returns min(Cap, failures^Exponent * Unit). Negative failure counts
// are treated as zero.
func (p Policy) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	unit := p.Unit
	if unit <= 0 {
		unit = DefaultUnit
	}

	scaled := math.Pow(float64(failures), p.Exponent) * float64(unit)
	if p.Cap > 0 && scaled >= float64(p.Cap) {
		return p.Cap
	}
	if scaled >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(scaled)
}

// Sleep blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() if the context ended the wait.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
