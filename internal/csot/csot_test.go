package csot

import (
	"context"
	"testing"
	"time"
)

func TestMakeTimeoutContext(t *testing.T) {
	ctx, cancel := MakeTimeoutContext(context.Background(), 50*time.Millisecond)
	defer cancel()
	if !IsTimeoutContext(ctx) {
		t.Fatal("expected IsTimeoutContext to report true")
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("expected a nonzero timeout to set a deadline")
	}
}

func TestMakeTimeoutContextZeroNoDeadline(t *testing.T) {
	ctx, cancel := MakeTimeoutContext(context.Background(), 0)
	defer cancel()
	if !IsTimeoutContext(ctx) {
		t.Fatal("expected IsTimeoutContext to report true even without a deadline")
	}
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("expected a zero timeout to leave the context without a deadline")
	}
}

func TestSkipMaxTimeContext(t *testing.T) {
	ctx := context.Background()
	if IsSkipMaxTimeContext(ctx) {
		t.Fatal("expected a plain context to not be marked skip-max-time")
	}
	ctx = NewSkipMaxTimeContext(ctx)
	if !IsSkipMaxTimeContext(ctx) {
		t.Fatal("expected NewSkipMaxTimeContext to mark the context")
	}
}

func TestWithServerSelectionTimeoutNoParentDeadline(t *testing.T) {
	ctx, cancel := WithServerSelectionTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline derived from serverSelectionTimeout")
	}
	if time.Until(deadline) > 20*time.Millisecond {
		t.Fatal("expected deadline to be bounded by serverSelectionTimeout")
	}
}

func TestWithServerSelectionTimeoutTakesTighterBound(t *testing.T) {
	parent, parentCancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer parentCancel()

	ctx, cancel := WithServerSelectionTimeout(parent, time.Hour)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if time.Until(deadline) > 5*time.Millisecond {
		t.Fatal("expected the parent's tighter deadline to win")
	}
}

func TestWithServerSelectionTimeoutNoTimeoutNoDeadline(t *testing.T) {
	ctx, cancel := WithServerSelectionTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("expected no deadline when neither parent nor serverSelectionTimeout impose one")
	}
}
