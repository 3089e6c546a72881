// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package cursor

import (
	"context"
	"testing"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/wiremessage"
)

// scriptedConn replays a fixed sequence of replies to successive
// ReadWireMessage calls, regardless of what was written, so a Cursor's
// get-more/kill-cursors traffic can be exercised without a real server.
type scriptedConn struct {
	replies    [][]byte
	writes     [][]byte
	closeCalls int
}

func (c *scriptedConn) WriteWireMessage(ctx context.Context, msg []byte) error {
	c.writes = append(c.writes, msg)
	return nil
}

func (c *scriptedConn) ReadWireMessage(ctx context.Context) ([]byte, error) {
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func encodeReply(t *testing.T, cursorID int64, flags wiremessage.ReplyFlag, docs ...*bson.Document) []byte {
	t.Helper()
	r := wiremessage.Reply{
		ResponseFlags:  flags,
		CursorID:       cursorID,
		NumberReturned: int32(len(docs)),
		Documents:      docs,
	}
	buf := make([]byte, 16)
	buf = appendI32(buf, int32(r.ResponseFlags))
	buf = appendI64(buf, r.CursorID)
	buf = appendI32(buf, 0)
	buf = appendI32(buf, r.NumberReturned)
	for _, d := range docs {
		b, err := bson.Encode(d)
		if err != nil {
			t.Fatal(err)
		}
		buf = append(buf, b...)
	}
	h := wiremessage.Header{MessageLength: int32(len(buf)), OpCode: wiremessage.OpReply}
	copy(buf[0:16], h.AppendHeader(nil))
	return buf
}

func appendI32(dst []byte, v int32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendI64(dst []byte, v int64) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func doc(i int32) *bson.Document {
	return bson.NewDocument(bson.Elem{Key: "i", Value: bson.Int32(i)})
}

func TestCursorDrainsFirstBatchThenGetsMore(t *testing.T) {
	conn := &scriptedConn{replies: [][]byte{
		encodeReply(t, 0, 0, doc(2)),
	}}
	var ids wiremessage.RequestIDGenerator
	c := New(conn, &ids, "test.coll", 42, []*bson.Document{doc(0), doc(1)}, 2, 0, false, false)

	for i := int32(0); i < 3; i++ {
		d, ok, err := c.Next(context.Background())
		if err != nil || !ok {
			t.Fatalf("Next(%d): ok=%v err=%v", i, ok, err)
		}
		v, _ := d.Lookup("i")
		if v.AsInt32() != i {
			t.Fatalf("Next(%d): got %d", i, v.AsInt32())
		}
	}

	d, ok, err := c.Next(context.Background())
	if err != nil || ok || d != nil {
		t.Fatalf("expected exhaustion after cursorId reached 0, got doc=%v ok=%v err=%v", d, ok, err)
	}
}

func TestCursorRespectsLimit(t *testing.T) {
	var ids wiremessage.RequestIDGenerator
	c := New(&scriptedConn{}, &ids, "test.coll", 0, []*bson.Document{doc(0), doc(1)}, 2, 1, false, false)

	_, ok, err := c.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("first Next: ok=%v err=%v", ok, err)
	}
	_, ok, err = c.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("expected limit to stop iteration, ok=%v err=%v", ok, err)
	}
}

func TestCursorSetLimitFailsAfterStart(t *testing.T) {
	var ids wiremessage.RequestIDGenerator
	c := New(&scriptedConn{}, &ids, "test.coll", 0, []*bson.Document{doc(0)}, 2, 0, false, false)
	if _, _, err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := c.SetLimit(5); err == nil {
		t.Fatal("expected CursorStateError after iteration has begun")
	}
}

func TestCursorCloseSendsKillCursorsOnlyWhenLive(t *testing.T) {
	conn := &scriptedConn{}
	var ids wiremessage.RequestIDGenerator
	c := New(conn, &ids, "test.coll", 99, []*bson.Document{doc(0)}, 2, 0, false, false)
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(conn.writes) != 1 {
		t.Fatalf("expected exactly one kill_cursors write, got %d", len(conn.writes))
	}

	conn2 := &scriptedConn{}
	c2 := New(conn2, &ids, "test.coll", 0, []*bson.Document{doc(0)}, 2, 0, false, false)
	if err := c2.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(conn2.writes) != 0 {
		t.Fatalf("expected no kill_cursors write when cursorId is already 0, got %d", len(conn2.writes))
	}
}

func TestCursorTailableEmptyBatchNotExhausted(t *testing.T) {
	conn := &scriptedConn{replies: [][]byte{
		encodeReply(t, 7, 0),
	}}
	var ids wiremessage.RequestIDGenerator
	c := New(conn, &ids, "test.coll", 7, nil, 2, 0, true, true)

	d, ok, err := c.Next(context.Background())
	if err != nil || ok || d != nil {
		t.Fatalf("expected empty-but-not-exhausted result, got doc=%v ok=%v err=%v", d, ok, err)
	}
	if !c.More() {
		t.Fatal("expected More() to report the tailable cursor is still live")
	}
}
