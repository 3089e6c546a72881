// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"sync"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/command"
	"github.com/coredb-io/coredb-go-driver/connection"
	"github.com/coredb-io/coredb-go-driver/cursor"
	"github.com/coredb-io/coredb-go-driver/readpref"
	"github.com/coredb-io/coredb-go-driver/topology"
)

// Cursor wraps cursor.Cursor with the pooled stream and Server it is
// pinned to for its lifetime, per §3's PooledStream lifecycle note: the
// stream is held exclusively until the cursor is exhausted or closed, at
// which point it is returned to its pool exactly once.
type Cursor struct {
	*cursor.Cursor
	srv       *topology.Server
	stream    *connection.PooledStream
	released  sync.Once
}

// Next advances the cursor, releasing the underlying stream back to its
// pool the moment the cursor has nothing left to offer (buffer empty and
// cursor id exhausted), per §3's Cursor lifecycle: "destroyed when
// exhausted or explicitly closed."
func (c *Cursor) Next(ctx context.Context) (*bson.Document, bool, error) {
	doc, ok, err := c.Cursor.Next(ctx)
	if !ok && !c.Cursor.More() {
		c.release()
	}
	return doc, ok, err
}

// Close ends server-side iteration (sending kill-cursors if still live,
// per §9's resolved auto-send policy) and releases the stream.
func (c *Cursor) Close(ctx context.Context) error {
	err := c.Cursor.Close(ctx)
	c.release()
	return err
}

func (c *Cursor) release() {
	c.released.Do(func() {
		c.srv.ReleaseConnection(c.stream)
	})
}

// runCursorCommand dispatches a cursor-shaped command (find, aggregate,
// listCollections) and wraps its "cursor" reply sub-document into a
// Cursor, keeping the chosen stream checked out for the cursor's life.
func (c *Client) runCursorCommand(ctx context.Context, kind topology.OperationKind, rp *readpref.ReadPreference, db string, cmd *bson.Document, fallbackNS string, batchSize int32, tailable, awaitData bool) (*Cursor, error) {
	stream, srv, err := c.acquire(ctx, kind, rp)
	if err != nil {
		return nil, err
	}

	reply, err := c.dispatch(ctx, stream, db, cmd)
	if err != nil {
		srv.ReleaseConnection(stream)
		return nil, err
	}

	cv, ok := reply.Lookup("cursor")
	if !ok || cv.Kind() != bson.KindDocument {
		srv.ReleaseConnection(stream)
		return nil, &command.ResponseError{Field: "cursor"}
	}
	cdoc := cv.AsDocument()

	var cursorID int64
	if idv, ok := cdoc.Lookup("id"); ok {
		cursorID = asInt64(idv)
	}

	ns := fallbackNS
	if nsv, ok := cdoc.Lookup("ns"); ok && nsv.Kind() == bson.KindString {
		ns = nsv.AsString()
	}

	var firstBatch []*bson.Document
	if bv, ok := cdoc.Lookup("firstBatch"); ok && bv.Kind() == bson.KindArray {
		for _, e := range bv.AsDocument().Elements() {
			firstBatch = append(firstBatch, e.Value.AsDocument())
		}
	}

	inner := cursor.New(stream, &c.ids, ns, cursorID, firstBatch, batchSize, 0, tailable, awaitData)
	return &Cursor{Cursor: inner, srv: srv, stream: stream}, nil
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
