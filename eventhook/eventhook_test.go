package eventhook

import "testing"

func TestRegistrySubscribeDispatch(t *testing.T) {
	var r Registry
	if r.Enabled() {
		t.Fatal("expected a fresh Registry to report disabled")
	}

	var started, succeeded, failed int
	m := r.Subscribe(&Monitor{
		Started:   func(*CommandStartedEvent) { started++ },
		Succeeded: func(*CommandSucceededEvent) { succeeded++ },
		Failed:    func(*CommandFailedEvent) { failed++ },
	})
	if !r.Enabled() {
		t.Fatal("expected Registry to report enabled after Subscribe")
	}

	r.Started(&CommandStartedEvent{CommandName: "find"})
	r.Succeeded(&CommandSucceededEvent{CommandName: "find"})
	r.Failed(&CommandFailedEvent{CommandName: "find"})

	if started != 1 || succeeded != 1 || failed != 1 {
		t.Fatalf("expected each callback once, got started=%d succeeded=%d failed=%d", started, succeeded, failed)
	}

	r.Unsubscribe(m)
	if r.Enabled() {
		t.Fatal("expected Registry to report disabled after removing the only monitor")
	}
	r.Started(&CommandStartedEvent{})
	if started != 1 {
		t.Fatal("expected no further dispatch after Unsubscribe")
	}
}

func TestRegistryMultipleMonitors(t *testing.T) {
	var r Registry
	var calls []string
	r.Subscribe(&Monitor{Started: func(*CommandStartedEvent) { calls = append(calls, "a") }})
	r.Subscribe(&Monitor{Started: func(*CommandStartedEvent) { calls = append(calls, "b") }})

	r.Started(&CommandStartedEvent{})
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("expected both monitors dispatched in registration order, got %v", calls)
	}
}
