// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "github.com/coredb-io/coredb-go-driver/bson"

// QueryFlag is a bit in OP_QUERY's flags field, per §4.3.
type QueryFlag int32

// Query flag bits, per §4.3. Bit 0 is reserved and always zero.
const (
	FlagTailableCursor  QueryFlag = 1 << 1
	FlagSlaveOK         QueryFlag = 1 << 2
	FlagOplogReplay     QueryFlag = 1 << 3
	FlagNoCursorTimeout QueryFlag = 1 << 4
	FlagAwaitData       QueryFlag = 1 << 5
	FlagExhaust         QueryFlag = 1 << 6
	FlagPartial         QueryFlag = 1 << 7
)

// Has reports whether bit is set in flags.
func (f QueryFlag) Has(bit QueryFlag) bool { return f&bit != 0 }

// Query is the OP_QUERY message body, used both for real queries and for
// $cmd command dispatch (§6).
type Query struct {
	Header               Header
	Flags                QueryFlag
	FullCollectionName   string
	NumberToSkip         int32
	NumberToReturn       int32
	Query                *bson.Document
	ReturnFieldSelector  *bson.Document
}

// AppendWireMessage serializes q, including its header, onto dst.
func (q Query) AppendWireMessage(dst []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, headerLen)...)
	dst = appendInt32(dst, int32(q.Flags))
	dst = appendCString(dst, q.FullCollectionName)
	dst = appendInt32(dst, q.NumberToSkip)
	dst = appendInt32(dst, q.NumberToReturn)

	body, err := bson.Encode(q.Query)
	if err != nil {
		return nil, err
	}
	dst = append(dst, body...)

	if q.ReturnFieldSelector != nil {
		sel, err := bson.Encode(q.ReturnFieldSelector)
		if err != nil {
			return nil, err
		}
		dst = append(dst, sel...)
	}

	h := q.Header
	h.MessageLength = int32(len(dst) - start)
	h.OpCode = OpQuery
	copy(dst[start:start+headerLen], h.AppendHeader(nil))
	return dst, nil
}
