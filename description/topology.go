// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"github.com/coredb-io/coredb-go-driver/address"
	"github.com/coredb-io/coredb-go-driver/bson"
)

// TopologyType classifies the deployment as a whole.
type TopologyType uint8

// The five topology types, per §4.6.
const (
	TopologyUnknown TopologyType = iota
	TopologySingle
	TopologySharded
	TopologyReplicaSetNoPrimary
	TopologyReplicaSetWithPrimary
)

func (t TopologyType) String() string {
	switch t {
	case TopologySingle:
		return "Single"
	case TopologySharded:
		return "Sharded"
	case TopologyReplicaSetNoPrimary:
		return "ReplicaSetNoPrimary"
	case TopologyReplicaSetWithPrimary:
		return "ReplicaSetWithPrimary"
	default:
		return "Unknown"
	}
}

// TopologyDescription is the aggregate SDAM state: the topology type, the
// replica set name (if any), and the current description of every known
// server.
type TopologyDescription struct {
	Type             TopologyType
	SetName          string
	Servers          map[address.Address]ServerDescription
	MaxElectionID    bson.ObjectID
	HasMaxElectionID bool
}

// NewTopologyDescription builds the initial description for the given
// topology type and seed addresses, each starting Unknown.
func NewTopologyDescription(t TopologyType, setName string, seeds []address.Address) *TopologyDescription {
	td := &TopologyDescription{
		Type:    t,
		SetName: setName,
		Servers: make(map[address.Address]ServerDescription, len(seeds)),
	}
	for _, a := range seeds {
		td.Servers[a] = NewDefaultServerDescription(a)
	}
	return td
}

// Clone returns a deep-enough copy of td safe to mutate independently;
// the monitor loop applies each update to a clone under the topology
// write lock and swaps it in, per §4.5.
func (td *TopologyDescription) Clone() *TopologyDescription {
	clone := &TopologyDescription{
		Type:             td.Type,
		SetName:          td.SetName,
		MaxElectionID:    td.MaxElectionID,
		HasMaxElectionID: td.HasMaxElectionID,
		Servers:          make(map[address.Address]ServerDescription, len(td.Servers)),
	}
	for a, sd := range td.Servers {
		clone.Servers[a] = sd
	}
	return clone
}

// DataBearingServers returns the descriptions of every data-bearing
// server currently tracked.
func (td *TopologyDescription) DataBearingServers() []ServerDescription {
	out := make([]ServerDescription, 0, len(td.Servers))
	for _, sd := range td.Servers {
		if sd.Type.DataBearing() {
			out = append(out, sd)
		}
	}
	return out
}

// Primary returns the current RSPrimary (or the sole Standalone, or any
// Mongos), and whether one was found.
func (td *TopologyDescription) Primary() (ServerDescription, bool) {
	for _, sd := range td.Servers {
		switch td.Type {
		case TopologySingle:
			if sd.Type == Standalone || sd.Type == Mongos || sd.Type == RSPrimary {
				return sd, true
			}
		case TopologySharded:
			if sd.Type == Mongos {
				return sd, true
			}
		default:
			if sd.Type == RSPrimary {
				return sd, true
			}
		}
	}
	return ServerDescription{}, false
}
