// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import "github.com/coredb-io/coredb-go-driver/address"

// Diff describes the servers a topology update added or removed, so a
// caller can start or stop the corresponding monitors.
type Diff struct {
	Added   []address.Address
	Removed []address.Address
}

// ApplyServerUpdate folds a single server's new description into td,
// implementing the SDAM state machine transitions of §4.6. It returns the
// new TopologyDescription (td is not mutated) and the set of servers
// added or removed as a result, so the caller can spawn or stop monitors.
func ApplyServerUpdate(td *TopologyDescription, desc ServerDescription) (*TopologyDescription, Diff) {
	next := td.Clone()
	before := hostSet(next)

	switch next.Type {
	case TopologySingle:
		next.Servers[desc.Address] = desc
		return next, diffHosts(before, hostSet(next))
	}

	switch desc.Type {
	case Standalone:
		if len(next.Servers) > 1 {
			delete(next.Servers, desc.Address)
			if len(next.Servers) == 0 {
				next.Type = TopologyUnknown
			}
			return next, diffHosts(before, hostSet(next))
		}
		next.Servers[desc.Address] = desc

	case Mongos:
		if next.Type == TopologyUnknown {
			next.Type = TopologySharded
			next.Servers[desc.Address] = desc
		} else if next.Type != TopologySharded {
			delete(next.Servers, desc.Address)
		} else {
			next.Servers[desc.Address] = desc
		}

	case RSPrimary:
		applyRSPrimary(next, desc)

	case RSSecondary, RSArbiter, RSOther:
		applyRSNonPrimary(next, desc)

	case RSGhost:
		// leave topology alone, per §4.6.

	case Unknown:
		next.Servers[desc.Address] = desc
		if next.Type == TopologyReplicaSetWithPrimary {
			if p, ok := next.Primary(); !ok || p.Address == desc.Address {
				next.Type = TopologyReplicaSetNoPrimary
			}
		}

	default:
		next.Servers[desc.Address] = desc
	}

	return next, diffHosts(before, hostSet(next))
}

func applyRSPrimary(td *TopologyDescription, desc ServerDescription) {
	if td.SetName == "" {
		td.SetName = desc.SetName
	} else if desc.SetName != td.SetName {
		delete(td.Servers, desc.Address)
		return
	}

	if desc.HasElectionID {
		if td.HasMaxElectionID && desc.ElectionID.Compare(td.MaxElectionID) < 0 {
			td.Servers[desc.Address] = desc.SetErr(nil)
			return
		}
		td.MaxElectionID = desc.ElectionID
		td.HasMaxElectionID = true
	}

	for addr, other := range td.Servers {
		if addr != desc.Address && other.Type == RSPrimary {
			td.Servers[addr] = other.SetErr(nil)
		}
	}
	td.Servers[desc.Address] = desc

	union := make(map[address.Address]struct{})
	for _, h := range desc.AllHosts() {
		union[h] = struct{}{}
	}
	for addr := range td.Servers {
		if _, ok := union[addr]; !ok && addr != desc.Address {
			delete(td.Servers, addr)
		}
	}
	for h := range union {
		if _, ok := td.Servers[h]; !ok {
			td.Servers[h] = NewDefaultServerDescription(h)
		}
	}

	if _, ok := td.Primary(); ok {
		td.Type = TopologyReplicaSetWithPrimary
	} else {
		td.Type = TopologyReplicaSetNoPrimary
	}
}

func applyRSNonPrimary(td *TopologyDescription, desc ServerDescription) {
	if td.SetName == "" {
		td.SetName = desc.SetName
	} else if desc.SetName != "" && desc.SetName != td.SetName {
		delete(td.Servers, desc.Address)
		return
	}

	td.Servers[desc.Address] = desc
	for _, h := range desc.AllHosts() {
		if _, ok := td.Servers[h]; !ok {
			td.Servers[h] = NewDefaultServerDescription(h)
		}
	}

	if td.Type != TopologyReplicaSetWithPrimary {
		td.Type = TopologyReplicaSetNoPrimary
	}
}

func hostSet(td *TopologyDescription) map[address.Address]struct{} {
	out := make(map[address.Address]struct{}, len(td.Servers))
	for a := range td.Servers {
		out[a] = struct{}{}
	}
	return out
}

func diffHosts(before, after map[address.Address]struct{}) Diff {
	var d Diff
	for a := range after {
		if _, ok := before[a]; !ok {
			d.Added = append(d.Added, a)
		}
	}
	for a := range before {
		if _, ok := after[a]; !ok {
			d.Removed = append(d.Removed, a)
		}
	}
	return d
}
