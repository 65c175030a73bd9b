package core

// RetryLimiter counts failed verification attempts. It is owned by the
// orchestrator loop and is not safe for concurrent use.
type RetryLimiter struct {
	count int
	max   int
}

func NewRetryLimiter(max int) *RetryLimiter {
	if max <= 0 {
		max = DefaultMaxRetries
	}
	return &RetryLimiter{max: max}
}

func (l *RetryLimiter) CanAttempt() bool {
	return l.count < l.max
}

// RecordFailure saturates at max so the counter stays in [0, max].
func (l *RetryLimiter) RecordFailure() {
	if l.count < l.max {
		l.count++
	}
}

func (l *RetryLimiter) Reset() {
	l.count = 0
}

func (l *RetryLimiter) Count() int {
	return l.count
}

func (l *RetryLimiter) Max() int {
	return l.max
}
