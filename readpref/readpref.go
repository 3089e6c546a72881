// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package readpref implements the read preference modes and tag sets used
// to pick a replica set member for a read, per §3/§4.6.
package readpref

import "fmt"

// Mode selects which kind of replica set member may serve a read.
type Mode uint8

// The five read preference modes.
const (
	PrimaryMode Mode = iota
	PrimaryPreferredMode
	SecondaryMode
	SecondaryPreferredMode
	NearestMode
)

func (m Mode) String() string {
	switch m {
	case PrimaryMode:
		return "primary"
	case PrimaryPreferredMode:
		return "primaryPreferred"
	case SecondaryMode:
		return "secondary"
	case SecondaryPreferredMode:
		return "secondaryPreferred"
	case NearestMode:
		return "nearest"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ModeFromString parses the connection-string spelling of a mode.
func ModeFromString(s string) (Mode, error) {
	switch s {
	case "primary":
		return PrimaryMode, nil
	case "primaryPreferred":
		return PrimaryPreferredMode, nil
	case "secondary":
		return SecondaryMode, nil
	case "secondaryPreferred":
		return SecondaryPreferredMode, nil
	case "nearest":
		return NearestMode, nil
	default:
		return 0, fmt.Errorf("readpref: unknown mode %q", s)
	}
}

// TagSet is a mapping of tag name to value. The empty TagSet
// matches any server.
type TagSet map[string]string

// Matches reports whether every tag in ts is present with an equal value
// in serverTags. An empty TagSet always matches.
func (ts TagSet) Matches(serverTags map[string]string) bool {
	for k, v := range ts {
		if serverTags[k] != v {
			return false
		}
	}
	return true
}

// ReadPreference pairs a Mode with an ordered list of candidate tag sets,
// per §3. TagSets is only meaningful for non-primary modes; a primary read
// must target the actual primary regardless of tags.
type ReadPreference struct {
	Mode    Mode
	TagSets []TagSet
}

// Primary returns the primary read preference.
func Primary() *ReadPreference { return &ReadPreference{Mode: PrimaryMode} }

// New constructs a ReadPreference with the given mode and tag sets.
func New(mode Mode, tagSets ...TagSet) *ReadPreference {
	return &ReadPreference{Mode: mode, TagSets: tagSets}
}

// MatchesAny reports whether serverTags satisfies at least one of rp's tag
// sets, or rp carries no tag sets at all.
func (rp *ReadPreference) MatchesAny(serverTags map[string]string) bool {
	if len(rp.TagSets) == 0 {
		return true
	}
	for _, ts := range rp.TagSets {
		if ts.Matches(serverTags) {
			return true
		}
	}
	return false
}
