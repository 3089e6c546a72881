// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coredb-io/coredb-go-driver/address"
	"github.com/coredb-io/coredb-go-driver/connection"
	"github.com/coredb-io/coredb-go-driver/description"
	"github.com/coredb-io/coredb-go-driver/internal/csot"
	"github.com/coredb-io/coredb-go-driver/readpref"
)

// DefaultServerSelectionTimeout is how long SelectServer blocks before
// giving up, per §4.6.
const DefaultServerSelectionTimeout = 30 * time.Second

// DefaultLocalThreshold is the latency window used to keep only the
// fastest suitable servers, per §4.6.
const DefaultLocalThreshold = 15 * time.Millisecond

// ServerSelectionError reports that no suitable server could be found
// within the selection timeout.
type ServerSelectionError struct {
	Topology *description.TopologyDescription
}

func (e *ServerSelectionError) Error() string {
	return fmt.Sprintf("topology: no suitable server found for topology type %s", e.Topology.Type)
}

// Topology owns the shared SDAM state and the set of live per-server
// monitors, per §4.6.
type Topology struct {
	info AppClientInfo
	opts []connection.Option

	serverSelectionTimeout time.Duration
	localThreshold         time.Duration
	poolCap                int

	mu       sync.Mutex
	desc     *description.TopologyDescription
	servers  map[address.Address]*Server

	waitersMu    sync.Mutex
	waiters      map[int64]chan struct{}
	nextWaiterID int64

	rnd *rand.Rand
}

// New constructs a Topology of the given type, seeded with addrs, and
// starts a monitor for each seed.
func New(t description.TopologyType, setName string, addrs []address.Address, info AppClientInfo, poolCap int, opts ...connection.Option) *Topology {
	topo := &Topology{
		info:                   info,
		opts:                   opts,
		serverSelectionTimeout: DefaultServerSelectionTimeout,
		localThreshold:         DefaultLocalThreshold,
		poolCap:                poolCap,
		desc:                   description.NewTopologyDescription(t, setName, addrs),
		servers:                make(map[address.Address]*Server, len(addrs)),
		waiters:                make(map[int64]chan struct{}),
		rnd:                    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, a := range addrs {
		topo.startMonitor(a)
	}
	return topo
}

func (t *Topology) startMonitor(addr address.Address) {
	t.servers[addr] = NewServer(addr, t.poolCap, t.info, func(desc description.ServerDescription) {
		t.applyUpdate(desc)
	}, t.opts...)
}

// applyUpdate folds one server's new description into the shared
// TopologyDescription and starts/stops monitors for any added/removed
// hosts, per §4.6.
func (t *Topology) applyUpdate(desc description.ServerDescription) {
	t.mu.Lock()
	next, diff := description.ApplyServerUpdate(t.desc, desc)
	t.desc = next

	for _, a := range diff.Added {
		if _, ok := t.servers[a]; !ok {
			t.startMonitor(a)
		}
	}
	var removed []*Server
	for _, a := range diff.Removed {
		if srv, ok := t.servers[a]; ok {
			removed = append(removed, srv)
			delete(t.servers, a)
		}
	}
	t.mu.Unlock()

	for _, srv := range removed {
		srv.Close()
	}
	t.notifyWaiters()
}

// Description returns the current TopologyDescription.
func (t *Topology) Description() *description.TopologyDescription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.desc
}

func (t *Topology) serverFor(addr address.Address) (*Server, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.servers[addr]
	return s, ok
}

// OperationKind distinguishes read from write selection, per §4.6.
type OperationKind uint8

// The two operation kinds server selection distinguishes.
const (
	WriteOperation OperationKind = iota
	ReadOperation
)

// SelectServer blocks until a suitable Server is found for the given
// operation kind (and, for reads, read preference), or ctx is done, or
// the server selection timeout elapses.
func (t *Topology) SelectServer(ctx context.Context, kind OperationKind, rp *readpref.ReadPreference) (*Server, error) {
	ctx, cancel := csot.WithServerSelectionTimeout(ctx, t.serverSelectionTimeout)
	defer cancel()

	updated, waiterID := t.awaitUpdates()
	defer t.removeWaiter(waiterID)

	for {
		td := t.Description()
		candidates := selectSuitable(td, kind, rp)
		candidates = applyLatencyWindow(candidates, t.localThreshold)

		if len(candidates) > 0 {
			chosen := candidates[t.rnd.Intn(len(candidates))]
			if srv, ok := t.serverFor(chosen.Address); ok {
				return srv, nil
			}
			continue
		}

		for _, srv := range t.snapshotServers() {
			srv.RequestImmediateCheck()
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &ServerSelectionError{Topology: td}
			}
			return nil, ctx.Err()
		case <-updated:
		}
	}
}

func (t *Topology) snapshotServers() []*Server {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Server, 0, len(t.servers))
	for _, s := range t.servers {
		out = append(out, s)
	}
	return out
}

func (t *Topology) awaitUpdates() (<-chan struct{}, int64) {
	id := atomic.AddInt64(&t.nextWaiterID, 1)
	ch := make(chan struct{}, 1)
	t.waitersMu.Lock()
	t.waiters[id] = ch
	t.waitersMu.Unlock()
	return ch, id
}

func (t *Topology) removeWaiter(id int64) {
	t.waitersMu.Lock()
	delete(t.waiters, id)
	t.waitersMu.Unlock()
}

func (t *Topology) notifyWaiters() {
	t.waitersMu.Lock()
	for _, ch := range t.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	t.waitersMu.Unlock()
}

// Close stops every server monitor.
func (t *Topology) Close() {
	t.mu.Lock()
	servers := t.servers
	t.servers = nil
	t.mu.Unlock()
	for _, s := range servers {
		s.Close()
	}
}

// selectSuitable implements the first phase of §4.6's server selection:
// choosing the class of server eligible for the operation, before latency
// windowing.
func selectSuitable(td *description.TopologyDescription, kind OperationKind, rp *readpref.ReadPreference) []description.ServerDescription {
	if kind == WriteOperation || rp == nil || rp.Mode == readpref.PrimaryMode {
		if p, ok := td.Primary(); ok {
			return []description.ServerDescription{p}
		}
		return nil
	}

	switch rp.Mode {
	case readpref.SecondaryMode:
		return matchingSecondaries(td, rp)
	case readpref.PrimaryPreferredMode:
		if p, ok := td.Primary(); ok {
			return []description.ServerDescription{p}
		}
		return matchingSecondaries(td, rp)
	case readpref.SecondaryPreferredMode:
		if secs := matchingSecondaries(td, rp); len(secs) > 0 {
			return secs
		}
		if p, ok := td.Primary(); ok {
			return []description.ServerDescription{p}
		}
		return nil
	case readpref.NearestMode:
		return td.DataBearingServers()
	default:
		return nil
	}
}

func matchingSecondaries(td *description.TopologyDescription, rp *readpref.ReadPreference) []description.ServerDescription {
	var secondaries []description.ServerDescription
	for _, sd := range td.Servers {
		if sd.Type == description.RSSecondary {
			secondaries = append(secondaries, sd)
		}
	}
	return filterByTagSets(secondaries, rp.TagSets)
}

// filterByTagSets implements §4.6's tag-matching rule: tag sets are tried
// in declaration order, and the first one that matches at least one
// candidate fixes the final candidate set. No tag sets (or only the empty
// tag set) matches every candidate.
func filterByTagSets(candidates []description.ServerDescription, tagSets []readpref.TagSet) []description.ServerDescription {
	if len(tagSets) == 0 {
		return candidates
	}
	for _, ts := range tagSets {
		var matched []description.ServerDescription
		for _, sd := range candidates {
			if ts.Matches(sd.Tags) {
				matched = append(matched, sd)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return nil
}

// applyLatencyWindow keeps only the servers within localThreshold of the
// fastest candidate, per §4.6.
func applyLatencyWindow(candidates []description.ServerDescription, localThreshold time.Duration) []description.ServerDescription {
	if len(candidates) <= 1 {
		return candidates
	}
	min := candidates[0].AverageRTT
	for _, sd := range candidates[1:] {
		if sd.AverageRTT < min {
			min = sd.AverageRTT
		}
	}
	max := min + localThreshold
	out := candidates[:0:0]
	for _, sd := range candidates {
		if sd.AverageRTT <= max {
			out = append(out, sd)
		}
	}
	return out
}
