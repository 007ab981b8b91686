package stream

import (
	"math"
	"time"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

// RetryPolicy bounds redelivery of failed consumption attempts.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
}

func (p RetryPolicy) isZero() bool {
	return p.MaxAttempts == 0 && p.InitialInterval == 0 && p.MaxInterval == 0 && p.Multiplier == 0
}

// NextDelay returns the backoff before the redelivery that follows failed
// attempt number attempt+1. attempt is zero-based: the first redelivery
// waits InitialInterval, each further one multiplies, capped at MaxInterval.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxInterval) {
		delay = float64(p.MaxInterval)
	}

	return time.Duration(delay)
}

// DeliveryAttempt tracks one record's consumption progress within a group.
type DeliveryAttempt struct {
	Record   Record
	Attempts int
	NextAt   time.Time
}

type Decision int

const (
	DecisionRetry Decision = iota
	DecisionDeadLetter
)

// OnFailure classifies a handler error and advances the attempt bookkeeping.
// Malformed records skip the budget entirely; terminal errors and an
// exhausted budget park the record; anything else is scheduled for
// redelivery after NextDelay.
func (p RetryPolicy) OnFailure(attempt *DeliveryAttempt, err error) Decision {
	if errs.IsKind(err, errs.KindMalformed) {
		return DecisionDeadLetter
	}

	attempt.Attempts++

	if errs.IsTerminal(err) {
		return DecisionDeadLetter
	}

	if attempt.Attempts >= p.MaxAttempts {
		return DecisionDeadLetter
	}

	attempt.NextAt = time.Now().Add(p.NextDelay(attempt.Attempts - 1))

	return DecisionRetry
}
