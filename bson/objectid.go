// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// ObjectID is the 12-byte identifier described in §3: 4 bytes of
// seconds-since-epoch, 3 bytes of machine id, 2 bytes of process id, and a
// 3-byte counter that is monotonic within a process.
type ObjectID [12]byte

var objectIDCounter = newObjectIDCounter()
var processUnique = machineProcessUnique()

// NewObjectID generates a new ObjectID using the current time, this
// process's fixed machine/process identifier, and the next value of the
// per-process counter.
func NewObjectID() ObjectID {
	return NewObjectIDFromTime(time.Now())
}

// NewObjectIDFromTime generates an ObjectID whose leading 4 bytes encode t,
// keeping the other fields' normal semantics. Useful for range queries.
func NewObjectIDFromTime(t time.Time) ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	copy(id[4:9], processUnique[:])
	putCounter(id[9:12], nextCounter())
	return id
}

func nextCounter() uint32 {
	return atomic.AddUint32(&objectIDCounter, 1) & 0x00FFFFFF
}

func newObjectIDCounter() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:]) & 0x00FFFFFF
}

func putCounter(dst []byte, c uint32) {
	dst[0] = byte(c >> 16)
	dst[1] = byte(c >> 8)
	dst[2] = byte(c)
}

// machineProcessUnique derives the 5 bytes (3 machine id + 2 process id)
// that stay fixed for the lifetime of the process.
func machineProcessUnique() [5]byte {
	var out [5]byte
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		_, _ = rand.Read(out[:3])
	} else {
		sum := hash32(hostname)
		out[0], out[1], out[2] = byte(sum), byte(sum>>8), byte(sum>>16)
	}
	pid := os.Getpid()
	out[3] = byte(pid)
	out[4] = byte(pid >> 8)
	return out
}

func hash32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Timestamp returns the 4-byte time component as seconds since the epoch.
func (id ObjectID) Timestamp() time.Time {
	sec := binary.BigEndian.Uint32(id[0:4])
	return time.Unix(int64(sec), 0).UTC()
}

// IsZero reports whether id is the zero-value ObjectID.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

// Hex returns the 24-character lowercase hex encoding of id.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ObjectID) String() string {
	return fmt.Sprintf("ObjectID(%q)", id.Hex())
}

// Compare returns -1, 0, or 1 as id is less than, equal to, or greater
// than other, ordering by raw byte value.
func (id ObjectID) Compare(other ObjectID) int {
	for i := range id {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ObjectIDFromHex parses a 24-character hex string into an ObjectID.
func ObjectIDFromHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 24 {
		return id, fmt.Errorf("invalid ObjectID string length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}
