// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "github.com/coredb-io/coredb-go-driver/bson"

// InsertFlag is a bit in OP_INSERT's flags field.
type InsertFlag int32

// ContinueOnError, if set, directs the server to keep inserting remaining
// documents in the batch after one fails.
const ContinueOnError InsertFlag = 1 << 0

// Insert is the legacy OP_INSERT message body, per §4.3's opcode table.
// The driver sends every write, acknowledged or unacknowledged (w=0), as
// a command over the $cmd query path (§4.9) and never sends OP_INSERT.
type Insert struct {
	Header             Header
	Flags              InsertFlag
	FullCollectionName string
	Documents          []*bson.Document
}

// AppendWireMessage serializes i, including its header, onto dst.
func (i Insert) AppendWireMessage(dst []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, headerLen)...)
	dst = appendInt32(dst, int32(i.Flags))
	dst = appendCString(dst, i.FullCollectionName)
	for _, doc := range i.Documents {
		b, err := bson.Encode(doc)
		if err != nil {
			return nil, err
		}
		dst = append(dst, b...)
	}

	h := i.Header
	h.MessageLength = int32(len(dst) - start)
	h.OpCode = OpInsert
	copy(dst[start:start+headerLen], h.AppendHeader(nil))
	return dst, nil
}
