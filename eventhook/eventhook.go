// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package eventhook implements the command-started/command-completed
// observer registry described in §9: hooks are stored as function values in
// a copy-on-write list guarded by a read-write lock, with a fast-path
// atomic bool that lets a call site skip the lock entirely when no hooks
// are registered.
package eventhook

import (
	"sync"
	"sync/atomic"
	"time"
)

// CommandStartedEvent is published immediately before a command is written
// to the wire.
type CommandStartedEvent struct {
	CommandName  string
	DatabaseName string
	RequestID    int32
	ConnectionID string
	Command      string // the command document, rendered for display
}

// CommandSucceededEvent is published after a command's reply has been
// parsed and found to carry ok:1.
type CommandSucceededEvent struct {
	CommandName  string
	RequestID    int32
	ConnectionID string
	Duration     time.Duration
	Reply        string
}

// CommandFailedEvent is published when a command could not be sent, its
// reply could not be parsed, or the reply carried ok:0.
type CommandFailedEvent struct {
	CommandName  string
	RequestID    int32
	ConnectionID string
	Duration     time.Duration
	Failure      string
}

// Monitor is the set of callbacks an application registers to observe
// command traffic, per §9. Any subset may be nil.
type Monitor struct {
	Started   func(*CommandStartedEvent)
	Succeeded func(*CommandSucceededEvent)
	Failed    func(*CommandFailedEvent)
}

// Registry holds the monitors subscribed on a Client. Registration is rare
// and dispatch is frequent (once per command), so the hot path is an
// atomic bool read; only Subscribe/Unsubscribe take the lock and replace
// the slice wholesale (copy-on-write).
type Registry struct {
	active    int32
	mu        sync.RWMutex
	monitors  []*Monitor
}

// Subscribe registers m and returns a token that Unsubscribe accepts to
// remove it again.
func (r *Registry) Subscribe(m *Monitor) *Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]*Monitor, len(r.monitors)+1)
	copy(next, r.monitors)
	next[len(r.monitors)] = m
	r.monitors = next
	atomic.StoreInt32(&r.active, 1)
	return m
}

// Unsubscribe removes a monitor previously returned by Subscribe.
func (r *Registry) Unsubscribe(m *Monitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]*Monitor, 0, len(r.monitors))
	for _, existing := range r.monitors {
		if existing != m {
			next = append(next, existing)
		}
	}
	r.monitors = next
	if len(next) == 0 {
		atomic.StoreInt32(&r.active, 0)
	}
}

// Enabled reports whether any monitor is registered, without taking the lock.
func (r *Registry) Enabled() bool {
	return atomic.LoadInt32(&r.active) != 0
}

func (r *Registry) snapshot() []*Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.monitors
}

// Started dispatches a CommandStartedEvent to every registered monitor that
// defines a Started callback. It is a no-op, without locking, when Enabled
// reports false.
func (r *Registry) Started(e *CommandStartedEvent) {
	if !r.Enabled() {
		return
	}
	for _, m := range r.snapshot() {
		if m.Started != nil {
			m.Started(e)
		}
	}
}

// Succeeded dispatches a CommandSucceededEvent to every registered monitor.
func (r *Registry) Succeeded(e *CommandSucceededEvent) {
	if !r.Enabled() {
		return
	}
	for _, m := range r.snapshot() {
		if m.Succeeded != nil {
			m.Succeeded(e)
		}
	}
}

// Failed dispatches a CommandFailedEvent to every registered monitor.
func (r *Registry) Failed(e *CommandFailedEvent) {
	if !r.Enabled() {
		return
	}
	for _, m := range r.snapshot() {
		if m.Failed != nil {
			m.Failed(e)
		}
	}
}
