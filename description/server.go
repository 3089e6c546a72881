// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package description holds the ServerDescription and TopologyDescription
// types and the SDAM state machine that keeps them current, per §4.5/§4.6.
package description

import (
	"time"

	"github.com/coredb-io/coredb-go-driver/address"
	"github.com/coredb-io/coredb-go-driver/bson"
)

// ServerType classifies a single server, derived from its isMaster reply.
type ServerType uint8

// The server types recognized by SDAM.
const (
	Unknown ServerType = iota
	Standalone
	Mongos
	RSPrimary
	RSSecondary
	RSArbiter
	RSOther
	RSGhost
)

func (t ServerType) String() string {
	switch t {
	case Standalone:
		return "Standalone"
	case Mongos:
		return "Mongos"
	case RSPrimary:
		return "RSPrimary"
	case RSSecondary:
		return "RSSecondary"
	case RSArbiter:
		return "RSArbiter"
	case RSOther:
		return "RSOther"
	case RSGhost:
		return "RSGhost"
	default:
		return "Unknown"
	}
}

// DataBearing reports whether a server of this type can serve reads.
func (t ServerType) DataBearing() bool {
	switch t {
	case Standalone, Mongos, RSPrimary, RSSecondary:
		return true
	default:
		return false
	}
}

// IsMasterResult is the parsed reply to the isMaster handshake command
// sent by the server monitor, per §4.5.
type IsMasterResult struct {
	OK             bool
	IsMaster       bool
	Secondary      bool
	ArbiterOnly    bool
	Hidden         bool
	Passive        bool
	Msg            string // "isdbgrid" identifies a mongos
	SetName        string
	SetVersion     int64
	HasSetVersion  bool
	ElectionID     bson.ObjectID
	HasElectionID  bool
	Primary        address.Address
	Hosts          []address.Address
	Passives       []address.Address
	Arbiters       []address.Address
	Me             address.Address
	Tags           map[string]string
	MinWireVersion int32
	MaxWireVersion int32
	Compression    []string
}

// ParseIsMasterResult extracts an IsMasterResult from a raw isMaster
// command reply document.
func ParseIsMasterResult(doc *bson.Document) IsMasterResult {
	var r IsMasterResult
	if v, ok := doc.Lookup("ok"); ok {
		r.OK = truthy(v)
	}
	if v, ok := doc.Lookup("ismaster"); ok {
		r.IsMaster = v.Kind() == bson.KindBoolean && v.AsBoolean()
	}
	if v, ok := doc.Lookup("secondary"); ok {
		r.Secondary = v.Kind() == bson.KindBoolean && v.AsBoolean()
	}
	if v, ok := doc.Lookup("arbiterOnly"); ok {
		r.ArbiterOnly = v.Kind() == bson.KindBoolean && v.AsBoolean()
	}
	if v, ok := doc.Lookup("hidden"); ok {
		r.Hidden = v.Kind() == bson.KindBoolean && v.AsBoolean()
	}
	if v, ok := doc.Lookup("passive"); ok {
		r.Passive = v.Kind() == bson.KindBoolean && v.AsBoolean()
	}
	if v, ok := doc.Lookup("msg"); ok && v.Kind() == bson.KindString {
		r.Msg = v.AsString()
	}
	if v, ok := doc.Lookup("setName"); ok && v.Kind() == bson.KindString {
		r.SetName = v.AsString()
	}
	if v, ok := doc.Lookup("setVersion"); ok {
		r.SetVersion = asInt64(v)
		r.HasSetVersion = true
	}
	if v, ok := doc.Lookup("electionId"); ok && v.Kind() == bson.KindObjectID {
		r.ElectionID = v.AsObjectID()
		r.HasElectionID = true
	}
	if v, ok := doc.Lookup("primary"); ok && v.Kind() == bson.KindString {
		r.Primary = address.Address(v.AsString())
	}
	if v, ok := doc.Lookup("me"); ok && v.Kind() == bson.KindString {
		r.Me = address.Address(v.AsString())
	}
	r.Hosts = readAddressArray(doc, "hosts")
	r.Passives = readAddressArray(doc, "passives")
	r.Arbiters = readAddressArray(doc, "arbiters")
	if v, ok := doc.Lookup("tags"); ok && v.Kind() == bson.KindDocument {
		tagsDoc := v.AsDocument()
		r.Tags = make(map[string]string, tagsDoc.Len())
		for _, e := range tagsDoc.Elements() {
			if e.Value.Kind() == bson.KindString {
				r.Tags[e.Key] = e.Value.AsString()
			}
		}
	}
	if v, ok := doc.Lookup("minWireVersion"); ok {
		r.MinWireVersion = int32(asInt64(v))
	}
	if v, ok := doc.Lookup("maxWireVersion"); ok {
		r.MaxWireVersion = int32(asInt64(v))
	}
	if v, ok := doc.Lookup("compression"); ok && v.Kind() == bson.KindArray {
		arr := v.AsDocument()
		for _, e := range arr.Elements() {
			if e.Value.Kind() == bson.KindString {
				r.Compression = append(r.Compression, e.Value.AsString())
			}
		}
	}
	return r
}

func truthy(v bson.Value) bool {
	switch v.Kind() {
	case bson.KindBoolean:
		return v.AsBoolean()
	case bson.KindDouble:
		return v.AsDouble() != 0
	case bson.KindInt32:
		return v.AsInt32() != 0
	case bson.KindInt64:
		return v.AsInt64() != 0
	default:
		return false
	}
}

func asInt64(v bson.Value) int64 {
	switch v.Kind() {
	case bson.KindInt32:
		return int64(v.AsInt32())
	case bson.KindInt64:
		return v.AsInt64()
	case bson.KindDouble:
		return int64(v.AsDouble())
	default:
		return 0
	}
}

func readAddressArray(doc *bson.Document, key string) []address.Address {
	v, ok := doc.Lookup(key)
	if !ok || v.Kind() != bson.KindArray {
		return nil
	}
	arr := v.AsDocument()
	out := make([]address.Address, 0, arr.Len())
	for _, e := range arr.Elements() {
		if e.Value.Kind() == bson.KindString {
			out = append(out, address.Address(e.Value.AsString()).Canonicalize())
		}
	}
	return out
}

// ServerType derives the ServerType implied by an IsMasterResult, per the
// field combinations documented in §4.6.
func (r IsMasterResult) ServerType() ServerType {
	if !r.OK {
		return Unknown
	}
	if r.Msg == "isdbgrid" {
		return Mongos
	}
	if r.SetName != "" {
		switch {
		case r.IsMaster:
			return RSPrimary
		case r.Secondary:
			return RSSecondary
		case r.ArbiterOnly:
			return RSArbiter
		case r.Hidden, r.Passive:
			return RSOther
		default:
			return RSOther
		}
	}
	if r.IsMaster {
		return Standalone
	}
	if r.Msg == "" && !r.IsMaster && r.Hosts == nil && r.SetName == "" {
		return RSGhost
	}
	return Standalone
}

// ServerDescription is this driver's view of one server's current state.
type ServerDescription struct {
	Address        address.Address
	Type           ServerType
	SetName        string
	SetVersion     int64
	ElectionID     bson.ObjectID
	HasElectionID  bool
	Primary        address.Address
	Hosts          []address.Address
	Passives       []address.Address
	Arbiters       []address.Address
	Tags           map[string]string
	Me             address.Address
	MinWireVersion int32
	MaxWireVersion int32
	AverageRTT     time.Duration
	HasAverageRTT  bool
	LastError      error
	LastUpdateTime time.Time
}

// NewDefaultServerDescription returns the Unknown description used before
// the first successful handshake.
func NewDefaultServerDescription(addr address.Address) ServerDescription {
	return ServerDescription{Address: addr, Type: Unknown}
}

// Update folds a fresh IsMasterResult and measured round-trip time into a
// new ServerDescription, computing the RTT EWMA per §4.5:
// new = sample/5 + old*4/5, with the first sample bypassing the formula.
func (sd ServerDescription) Update(r IsMasterResult, rtt time.Duration) ServerDescription {
	next := ServerDescription{
		Address:        sd.Address,
		Type:           r.ServerType(),
		SetName:        r.SetName,
		SetVersion:     r.SetVersion,
		ElectionID:     r.ElectionID,
		HasElectionID:  r.HasElectionID,
		Primary:        r.Primary,
		Hosts:          r.Hosts,
		Passives:       r.Passives,
		Arbiters:       r.Arbiters,
		Tags:           r.Tags,
		Me:             r.Me,
		MinWireVersion: r.MinWireVersion,
		MaxWireVersion: r.MaxWireVersion,
		LastUpdateTime: time.Now(),
	}
	if sd.HasAverageRTT {
		next.AverageRTT = rtt/5 + sd.AverageRTT*4/5
	} else {
		next.AverageRTT = rtt
	}
	next.HasAverageRTT = true
	return next
}

// SetErr returns a new ServerDescription reflecting a monitor failure:
// type reverts to Unknown and the error is recorded, per §4.5.
func (sd ServerDescription) SetErr(err error) ServerDescription {
	return ServerDescription{
		Address:        sd.Address,
		Type:           Unknown,
		LastError:      err,
		LastUpdateTime: time.Now(),
	}
}

// AllHosts returns the union of Hosts, Passives, and Arbiters advertised
// by this description.
func (sd ServerDescription) AllHosts() []address.Address {
	out := make([]address.Address, 0, len(sd.Hosts)+len(sd.Passives)+len(sd.Arbiters))
	out = append(out, sd.Hosts...)
	out = append(out, sd.Passives...)
	out = append(out, sd.Arbiters...)
	return out
}
