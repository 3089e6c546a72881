// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package cursor implements the get-more/kill-cursors protocol described
// in §4.8, including tailable/awaitData semantics and the resolved
// kill_cursors auto-send policy from §9.
package cursor

import (
	"context"
	"fmt"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/wiremessage"
)

// CursorStateError reports an attempt to mutate a Cursor's limit or skip
// after the first call to Next, per §4.8.
type CursorStateError struct {
	Reason string
}

func (e *CursorStateError) Error() string { return "cursor: " + e.Reason }

// CursorNotFoundError reports a reply with the cursorNotFound flag set,
// per §7.
type CursorNotFoundError struct {
	CursorID int64
}

func (e *CursorNotFoundError) Error() string {
	return fmt.Sprintf("cursor: server reports cursor %d not found", e.CursorID)
}

// Conn is the minimal connection ability a Cursor needs: it holds the one
// stream a cursor's get-more/kill-cursors traffic must stay pinned to,
// per §4.8.
type Conn interface {
	WriteWireMessage(ctx context.Context, msg []byte) error
	ReadWireMessage(ctx context.Context) ([]byte, error)
}

// Cursor iterates the batches of a server-side cursor, per §4.8.
type Cursor struct {
	conn               Conn
	ids                *wiremessage.RequestIDGenerator
	fullCollectionName string

	batchSize int32
	tailable  bool
	awaitData bool

	limit    int64
	skip     int64
	returned int64

	cursorID int64
	buffer   []*bson.Document
	started  bool
	closed   bool
}

// New constructs a Cursor from the first batch already returned by a
// find/aggregate/get-more reply, per §4.8's construction rule: the first
// batch of up to min(batchSize, limit if limit>0) documents is already in
// memory together with the server's cursor id.
func New(conn Conn, ids *wiremessage.RequestIDGenerator, fullCollectionName string, cursorID int64, firstBatch []*bson.Document, batchSize int32, limit int64, tailable, awaitData bool) *Cursor {
	return &Cursor{
		conn:               conn,
		ids:                ids,
		fullCollectionName: fullCollectionName,
		batchSize:          batchSize,
		tailable:           tailable,
		awaitData:          awaitData,
		limit:              limit,
		cursorID:           cursorID,
		buffer:             firstBatch,
	}
}

// SetLimit changes the cursor's limit. Only valid before the first Next.
func (c *Cursor) SetLimit(limit int64) error {
	if c.started {
		return &CursorStateError{Reason: "cannot set limit after iteration has begun"}
	}
	c.limit = limit
	return nil
}

// SetSkip changes the cursor's skip. Only valid before the first Next.
func (c *Cursor) SetSkip(skip int64) error {
	if c.started {
		return &CursorStateError{Reason: "cannot set skip after iteration has begun"}
	}
	c.skip = skip
	return nil
}

// Next returns the next document, per §4.8's next contract. ok is false
// when the cursor is exhausted (including a tailable cursor's empty,
// not-yet-exhausted poll — callers distinguish the two with More).
func (c *Cursor) Next(ctx context.Context) (doc *bson.Document, ok bool, err error) {
	c.started = true

	if c.limit > 0 && c.returned >= c.limit {
		return nil, false, nil
	}
	if len(c.buffer) > 0 {
		doc = c.buffer[0]
		c.buffer = c.buffer[1:]
		c.returned++
		return doc, true, nil
	}
	if c.cursorID == 0 {
		return nil, false, nil
	}

	if err := c.getMore(ctx); err != nil {
		return nil, false, err
	}
	if len(c.buffer) == 0 {
		// Tailable cursors may legitimately return an empty batch while
		// still open; a non-tailable cursor emptying out with a nonzero
		// id would be a server protocol violation, but we surface it the
		// same way: no document, not yet exhausted.
		return nil, false, nil
	}
	doc = c.buffer[0]
	c.buffer = c.buffer[1:]
	c.returned++
	return doc, true, nil
}

// More reports whether a subsequent Next could still produce a document:
// either the buffer is non-empty, or the cursor id is still live. This is
// how a tailable cursor's caller distinguishes "nothing right now" from
// "truly done".
func (c *Cursor) More() bool {
	return len(c.buffer) > 0 || c.cursorID != 0
}

func (c *Cursor) getMore(ctx context.Context) error {
	req := wiremessage.GetMore{
		Header:             wiremessage.Header{RequestID: c.ids.Next()},
		FullCollectionName: c.fullCollectionName,
		NumberToReturn:     c.batchSize,
		CursorID:           c.cursorID,
	}
	buf, err := req.AppendWireMessage(nil)
	if err != nil {
		return err
	}
	if err := c.conn.WriteWireMessage(ctx, buf); err != nil {
		return err
	}
	raw, err := c.conn.ReadWireMessage(ctx)
	if err != nil {
		return err
	}
	var reply wiremessage.Reply
	if err := reply.UnmarshalWireMessage(raw); err != nil {
		return err
	}
	if reply.ResponseFlags.Has(wiremessage.FlagCursorNotFound) {
		c.cursorID = 0
		return &CursorNotFoundError{CursorID: req.CursorID}
	}
	c.buffer = reply.Documents
	c.cursorID = reply.CursorID
	return nil
}

// Close ends server-side iteration, sending OP_KILL_CURSORS only if the
// cursor id is still live, per §9's resolved kill_cursors policy: this is
// the one path that sends it. A reply reporting cursorId == 0 ends the
// cursor without any kill-cursors message.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cursorID == 0 {
		return nil
	}
	kc := wiremessage.KillCursors{
		Header:            wiremessage.Header{RequestID: c.ids.Next()},
		NumberOfCursorIDs: 1,
		CursorIDs:         []int64{c.cursorID},
	}
	buf, err := kc.AppendWireMessage(nil)
	if err != nil {
		return err
	}
	err = c.conn.WriteWireMessage(ctx, buf)
	c.cursorID = 0
	return err
}
