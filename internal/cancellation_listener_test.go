package internal

import (
	"context"
	"testing"
	"time"
)

func TestCancellationListenerAbortsOnCancel(t *testing.T) {
	l := NewCancellationListener()
	ctx, cancel := context.WithCancel(context.Background())

	aborted := make(chan struct{})
	go l.Listen(ctx, func() { close(aborted) })

	cancel()

	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatal("expected abort callback to run after cancellation")
	}
	l.StopListening()
}

func TestCancellationListenerStopWithoutCancel(t *testing.T) {
	l := NewCancellationListener()
	done := make(chan struct{})
	go func() {
		l.Listen(context.Background(), func() { t.Error("abort callback should not run") })
		close(done)
	}()

	l.StopListening()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Listen to return after StopListening")
	}
}
