// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package command builds and dispatches commands over the `<db>.$cmd`
// query channel, per §6, and defines the error taxonomy of §7 for
// reply-shape and server-signaled failures.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/internal/csot"
	"github.com/coredb-io/coredb-go-driver/wiremessage"
)

// Namespace is a fully-qualified "db.collection" pair.
type Namespace struct {
	DB         string
	Collection string
}

// String returns "db.collection", or just "db" when Collection is empty.
func (ns Namespace) String() string {
	if ns.Collection == "" {
		return ns.DB
	}
	return ns.DB + "." + ns.Collection
}

// Command fullCollectionName for the $cmd pseudo-collection of db.
func cmdNamespace(db string) string { return db + ".$cmd" }

// ResponseError reports a reply document missing an expected field.
type ResponseError struct {
	Field string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("command: response missing expected field %q", e.Field)
}

// OperationError reports a command reply with ok: 0.
type OperationError struct {
	Code    int32
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("command: server returned ok:0 (code %d): %s", e.Code, e.Message)
}

// WireSender is the minimal ability this package needs from a checked-out
// connection: write one framed message, read one framed reply.
type WireSender interface {
	WriteWireMessage(ctx context.Context, msg []byte) error
	ReadWireMessage(ctx context.Context) ([]byte, error)
}

// RequestIDSource allocates request ids for outgoing commands.
type RequestIDSource interface {
	Next() int32
}

// Run sends cmd against db's $cmd pseudo-collection over conn, and
// returns the single reply document, per §6's "reply must contain
// exactly one document" contract.
func Run(ctx context.Context, conn WireSender, ids RequestIDSource, db string, cmd *bson.Document) (*bson.Document, error) {
	cmd = withMaxTimeMS(ctx, cmd)
	q := wiremessage.Query{
		Header:             wiremessage.Header{RequestID: ids.Next()},
		FullCollectionName: cmdNamespace(db),
		NumberToReturn:     -1,
		Query:              cmd,
	}
	buf, err := q.AppendWireMessage(nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteWireMessage(ctx, buf); err != nil {
		return nil, err
	}
	raw, err := conn.ReadWireMessage(ctx)
	if err != nil {
		return nil, err
	}

	var reply wiremessage.Reply
	if err := reply.UnmarshalWireMessage(raw); err != nil {
		return nil, err
	}
	if len(reply.Documents) != 1 {
		return nil, &ResponseError{Field: "(single reply document)"}
	}

	doc := reply.Documents[0]
	if err := checkOK(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// withMaxTimeMS adds a maxTimeMS field derived from ctx's deadline whenever
// ctx carries one (whatever produced it), letting the server enforce the same deadline the client is already
// honoring. Monitoring's hello/isMaster commands opt out via
// csot.NewSkipMaxTimeContext since they must not be awaitable.
func withMaxTimeMS(ctx context.Context, cmd *bson.Document) *bson.Document {
	if csot.IsSkipMaxTimeContext(ctx) {
		return cmd
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return cmd
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return cmd
	}
	ms := remaining.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return bson.NewDocument(cmd.Elements()...).Append("maxTimeMS", bson.Int64(ms))
}

func checkOK(doc *bson.Document) error {
	v, ok := doc.Lookup("ok")
	if !ok {
		return &ResponseError{Field: "ok"}
	}
	var isOK bool
	switch v.Kind() {
	case bson.KindDouble:
		isOK = v.AsDouble() == 1
	case bson.KindInt32:
		isOK = v.AsInt32() == 1
	case bson.KindBoolean:
		isOK = v.AsBoolean()
	}
	if isOK {
		return nil
	}
	var code int32
	var msg string
	if v, ok := doc.Lookup("code"); ok {
		switch v.Kind() {
		case bson.KindInt32:
			code = v.AsInt32()
		case bson.KindInt64:
			code = int32(v.AsInt64())
		}
	}
	if v, ok := doc.Lookup("errmsg"); ok && v.Kind() == bson.KindString {
		msg = v.AsString()
	}
	return &OperationError{Code: code, Message: msg}
}
