// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package writeconcern implements the durability policy attached to
// writes, per §3.
package writeconcern

import (
	"time"

	"github.com/coredb-io/coredb-go-driver/bson"
)

// WriteConcern describes how many nodes (or which named majority) must
// acknowledge a write, and whether it must be journaled or fsynced,
// before the write is considered acknowledged.
type WriteConcern struct {
	W        interface{} // int, or the string "majority"
	WTimeout time.Duration
	Journal  *bool
	FSync    *bool
}

// New constructs an acknowledged WriteConcern with w=1.
func New() *WriteConcern { return &WriteConcern{W: 1} }

// Unacknowledged returns a WriteConcern with w=0: the driver does not wait
// for or surface a server acknowledgement.
func Unacknowledged() *WriteConcern { return &WriteConcern{W: 0} }

// Majority returns a WriteConcern requiring acknowledgement from a
// majority of voting replica set members.
func Majority() *WriteConcern { return &WriteConcern{W: "majority"} }

// AckWrite reports whether wc requires any server acknowledgement at all.
// A nil WriteConcern is treated as the default, acknowledged concern.
func AckWrite(wc *WriteConcern) bool {
	if wc == nil {
		return true
	}
	if i, ok := wc.W.(int); ok {
		return i != 0
	}
	return true
}

// ToDocument renders wc as the "writeConcern" sub-document sent alongside
// a command, or nil if wc is nil.
func (wc *WriteConcern) ToDocument() *bson.Document {
	if wc == nil {
		return nil
	}
	d := bson.NewDocument()
	switch w := wc.W.(type) {
	case int:
		d.Append("w", bson.Int32(int32(w)))
	case string:
		d.Append("w", bson.String(w))
	}
	if wc.WTimeout > 0 {
		d.Append("wtimeout", bson.Int64(wc.WTimeout.Milliseconds()))
	}
	if wc.Journal != nil {
		d.Append("j", bson.Boolean(*wc.Journal))
	}
	if wc.FSync != nil {
		d.Append("fsync", bson.Boolean(*wc.FSync))
	}
	return d
}
