// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import (
	"testing"

	"github.com/coredb-io/coredb-go-driver/bson"
)

func TestQueryThenReplyRoundTrip(t *testing.T) {
	q := Query{
		Header:             Header{RequestID: 42},
		Flags:              FlagSlaveOK,
		FullCollectionName: "test.$cmd",
		NumberToReturn:     -1,
		Query:              bson.NewDocument(bson.Elem{Key: "ismaster", Value: bson.Int32(1)}),
	}
	buf, err := q.AppendWireMessage(nil)
	if err != nil {
		t.Fatalf("AppendWireMessage: %v", err)
	}
	hdr, err := ReadHeader(buf, 0)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.OpCode != OpQuery || hdr.RequestID != 42 || int(hdr.MessageLength) != len(buf) {
		t.Fatalf("unexpected header %+v (len %d)", hdr, len(buf))
	}

	replyDoc := bson.NewDocument(bson.Elem{Key: "ok", Value: bson.Double(1)})
	reply := buildReply(t, 42, replyDoc)
	var r Reply
	if err := r.UnmarshalWireMessage(reply); err != nil {
		t.Fatalf("UnmarshalWireMessage: %v", err)
	}
	if r.Header.ResponseTo != 42 {
		t.Fatalf("responseTo = %d, want 42", r.Header.ResponseTo)
	}
	if len(r.Documents) != 1 || !r.Documents[0].Equal(replyDoc) {
		t.Fatalf("documents = %+v", r.Documents)
	}
}

func buildReply(t *testing.T, responseTo int32, docs ...*bson.Document) []byte {
	t.Helper()
	buf := make([]byte, headerLen)
	buf = appendInt32(buf, 0) // responseFlags
	buf = appendInt64(buf, 0) // cursorID
	buf = appendInt32(buf, 0) // startingFrom
	buf = appendInt32(buf, int32(len(docs)))
	for _, d := range docs {
		b, err := bson.Encode(d)
		if err != nil {
			t.Fatal(err)
		}
		buf = append(buf, b...)
	}
	h := Header{MessageLength: int32(len(buf)), ResponseTo: responseTo, OpCode: OpReply}
	copy(buf[0:headerLen], h.AppendHeader(nil))
	return buf
}

func TestReplyRejectsShortMessage(t *testing.T) {
	buf := buildReply(t, 1)
	truncated := buf[:len(buf)-1]
	// Patch the length prefix back to the original so the truncation is
	// detected via "shorter than stated length" rather than a header read
	// failure.
	h := Header{MessageLength: int32(len(buf)), OpCode: OpReply}
	copy(truncated[0:4], h.AppendHeader(nil)[0:4])

	var r Reply
	if err := r.UnmarshalWireMessage(truncated); err == nil {
		t.Fatalf("expected ProtocolError-equivalent failure on truncated reply")
	}
}

func TestReplyRejectsUnknownOpcode(t *testing.T) {
	buf := buildReply(t, 1)
	h := Header{MessageLength: int32(len(buf)), OpCode: OpCode(9999)}
	copy(buf[0:headerLen], h.AppendHeader(nil))

	var r Reply
	if err := r.UnmarshalWireMessage(buf); err == nil {
		t.Fatalf("expected failure for unknown opcode")
	}
}

func TestRequestIDMonotonic(t *testing.T) {
	var g RequestIDGenerator
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		if next <= prev {
			t.Fatalf("request id not strictly increasing: %d then %d", prev, next)
		}
		prev = next
	}
}
