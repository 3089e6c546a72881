// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import (
	"github.com/coredb-io/coredb-go-driver/bson"
)

// ReplyFlag is a bit in OP_REPLY's responseFlags field, per §4.3.
type ReplyFlag int32

// Reply flag bits, per §4.3.
const (
	FlagCursorNotFound ReplyFlag = 1 << 0
	FlagQueryFailure   ReplyFlag = 1 << 1
	FlagAwaitCapable   ReplyFlag = 1 << 3
)

// Has reports whether bit is set in flags.
func (f ReplyFlag) Has(bit ReplyFlag) bool { return f&bit != 0 }

// Reply is the OP_REPLY message body.
type Reply struct {
	Header         Header
	ResponseFlags  ReplyFlag
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	Documents      []*bson.Document
}

// UnmarshalWireMessage parses src, which must begin with a full header
// whose OpCode is OpReply, into r. The reading rule in §4.3 requires every
// one of NumberReturned documents to be read even when QueryFailure is
// set — the first document is then an error document to surface.
func (r *Reply) UnmarshalWireMessage(src []byte) error {
	hdr, err := ReadHeader(src, 0)
	if err != nil {
		return err
	}
	if hdr.OpCode != OpReply {
		return protocolErrorf("unknown opcode %s", hdr.OpCode)
	}
	if int(hdr.MessageLength) > len(src) {
		return protocolErrorf("reply shorter than stated length %d (have %d)", hdr.MessageLength, len(src))
	}

	pos := int32(headerLen)
	if len(src) < int(pos)+20 {
		return protocolErrorf("reply body truncated")
	}
	r.Header = hdr
	r.ResponseFlags = ReplyFlag(readInt32(src, pos))
	r.CursorID = readInt64(src, pos+4)
	r.StartingFrom = readInt32(src, pos+12)
	r.NumberReturned = readInt32(src, pos+16)
	pos += 20

	r.Documents = make([]*bson.Document, 0, r.NumberReturned)
	for i := int32(0); i < r.NumberReturned; i++ {
		doc, n, err := bson.Decode(src[pos:hdr.MessageLength])
		if err != nil {
			return err
		}
		r.Documents = append(r.Documents, doc)
		pos += int32(n)
	}
	return nil
}
