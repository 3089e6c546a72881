// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/coredb-io/coredb-go-driver/address"
	"github.com/coredb-io/coredb-go-driver/description"
	"github.com/coredb-io/coredb-go-driver/readpref"
)

func addresses(servers []description.ServerDescription) []string {
	out := make([]string, len(servers))
	for i, s := range servers {
		out[i] = string(s.Address)
	}
	sort.Strings(out)
	return out
}

func desc(addr string, typ description.ServerType, rtt time.Duration, tags map[string]string) description.ServerDescription {
	return description.ServerDescription{
		Address:       address.Address(addr),
		Type:          typ,
		Tags:          tags,
		AverageRTT:    rtt,
		HasAverageRTT: true,
	}
}

func withServers(t description.TopologyType, servers ...description.ServerDescription) *description.TopologyDescription {
	td := &description.TopologyDescription{Type: t, Servers: make(map[address.Address]description.ServerDescription)}
	for _, s := range servers {
		td.Servers[s.Address] = s
	}
	return td
}

func TestSelectSuitablePrimaryRead(t *testing.T) {
	td := withServers(description.TopologyReplicaSetWithPrimary,
		desc("a", description.RSPrimary, 5*time.Millisecond, nil),
		desc("b", description.RSSecondary, 2*time.Millisecond, nil),
	)
	got := selectSuitable(td, ReadOperation, readpref.Primary())
	if len(got) != 1 || got[0].Address != "a" {
		t.Fatalf("expected only the primary, got %+v", got)
	}
}

func TestSelectSuitableSecondaryPreferredFallsBackToPrimary(t *testing.T) {
	td := withServers(description.TopologyReplicaSetWithPrimary,
		desc("a", description.RSPrimary, 5*time.Millisecond, nil),
	)
	rp := readpref.New(readpref.SecondaryPreferredMode)
	got := selectSuitable(td, ReadOperation, rp)
	if len(got) != 1 || got[0].Address != "a" {
		t.Fatalf("expected fallback to primary, got %+v", got)
	}
}

func TestTagSetOrderFixesCandidateSet(t *testing.T) {
	secondaries := []description.ServerDescription{
		desc("a", description.RSSecondary, time.Millisecond, map[string]string{"dc": "east"}),
		desc("b", description.RSSecondary, time.Millisecond, map[string]string{"dc": "west"}),
	}
	tagSets := []readpref.TagSet{
		{"dc": "nonexistent"},
		{}, // empty tag set matches any
	}
	got := filterByTagSets(secondaries, tagSets)
	if diff := cmp.Diff([]string{"a", "b"}, addresses(got)); diff != "" {
		t.Fatalf("expected the empty fallback tag set to match both (-want +got):\n%s", diff)
	}
}

func TestApplyLatencyWindowFiltersSlowServers(t *testing.T) {
	candidates := []description.ServerDescription{
		desc("a", description.RSSecondary, 1*time.Millisecond, nil),
		desc("b", description.RSSecondary, 2*time.Millisecond, nil),
		desc("c", description.RSSecondary, 50*time.Millisecond, nil),
	}
	got := applyLatencyWindow(candidates, 15*time.Millisecond)
	if diff := cmp.Diff([]string{"a", "b"}, addresses(got)); diff != "" {
		t.Fatalf("unexpected latency-window result (-want +got):\n%s", diff)
	}
}

func TestApplySDAMPrimaryElectionPrunesHosts(t *testing.T) {
	td := description.NewTopologyDescription(description.TopologyReplicaSetNoPrimary, "rs0", []address.Address{"a:27017", "b:27017"})

	primary := description.ServerDescription{
		Address: "a:27017",
		Type:    description.RSPrimary,
		SetName: "rs0",
		Hosts:   []address.Address{"a:27017", "c:27017"},
	}
	next, diff := description.ApplyServerUpdate(td, primary)

	if next.Type != description.TopologyReplicaSetWithPrimary {
		t.Fatalf("expected ReplicaSetWithPrimary, got %s", next.Type)
	}
	if _, ok := next.Servers["b:27017"]; ok {
		t.Fatalf("expected b:27017 pruned since it was not in the primary's host list")
	}
	if _, ok := next.Servers["c:27017"]; !ok {
		t.Fatalf("expected c:27017 added from the primary's host list")
	}
	found := false
	for _, a := range diff.Removed {
		if a == "b:27017" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected b:27017 reported as removed, diff=%+v", diff)
	}
}
