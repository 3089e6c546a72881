// Package csot carries client-side operation timeout state through a
// context.Context: whether an operation is running under a caller-imposed
// deadline at all, and whether a given command must opt out of having a
// maxTimeMS field derived from that deadline (monitoring's hello/isMaster
// traffic must stay non-awaitable regardless of any outer deadline).
package csot

import (
	"context"
	"time"
)

type timeoutKey struct{}

// MakeTimeoutContext returns a context carrying a Timeout of the given
// duration, marked so IsTimeoutContext reports it. command.Run derives a
// maxTimeMS from any context deadline and does not check the mark. A zero
// duration marks the context without imposing a deadline.
func MakeTimeoutContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	cancel := func() {}
	if timeout != 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	return context.WithValue(ctx, timeoutKey{}, true), cancel
}

// IsTimeoutContext reports whether ctx was produced by MakeTimeoutContext.
func IsTimeoutContext(ctx context.Context) bool {
	return ctx.Value(timeoutKey{}) != nil
}

type skipMaxTimeKey struct{}

// NewSkipMaxTimeContext marks ctx so command construction never adds a
// maxTimeMS field regardless of ctx's deadline, for the non-awaitable
// hello/isMaster commands monitoring sends.
func NewSkipMaxTimeContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipMaxTimeKey{}, true)
}

// IsSkipMaxTimeContext reports whether ctx was marked by
// NewSkipMaxTimeContext.
func IsSkipMaxTimeContext(ctx context.Context) bool {
	return ctx.Value(skipMaxTimeKey{}) != nil
}

// WithServerSelectionTimeout bounds parent by the lesser of
// serverSelectionTimeout and parent's existing deadline (if any),
// per §4.6. Non-positive values for serverSelectionTimeout are ignored.
func WithServerSelectionTimeout(parent context.Context, serverSelectionTimeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := parent.Deadline()

	if !hasDeadline && serverSelectionTimeout <= 0 {
		return parent, func() {}
	}

	timeout := serverSelectionTimeout
	if hasDeadline {
		remaining := time.Until(deadline)
		if serverSelectionTimeout <= 0 || remaining < serverSelectionTimeout {
			timeout = remaining
		}
	}

	return context.WithTimeout(parent, timeout)
}
