// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package command

import (
	"fmt"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/writeconcern"
)

// reservedCommandBufferBytes is the space the driver reserves for command
// overhead (the command name, namespace, and write concern) when packing
// a batch of documents against the server's 16 MB message size limit,
// per §4.10.
const reservedCommandBufferBytes = 16 * 10 * 10 * 10

// DefaultMaxBatchCount is the default cap on operations per bulk batch.
const DefaultMaxBatchCount = 1000

// DefaultMaxMessageSizeBytes is the default server message size limit.
const DefaultMaxMessageSizeBytes = 16 * 1024 * 1024

// WriteError is one per-index failure reported by a write command.
type WriteError struct {
	Index   int
	Code    int32
	Message string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("command: write error at index %d (code %d): %s", e.Index, e.Code, e.Message)
}

// WriteConcernError reports that a write applied but its replication or
// journal constraint failed, per §7.
type WriteConcernError struct {
	Code    int32
	Message string
}

func (e *WriteConcernError) Error() string {
	return "command: write concern error: " + e.Message
}

// WriteResult is the common shape of insert/update/delete command
// replies: the acknowledged count plus any per-index write errors and an
// optional write concern error.
type WriteResult struct {
	N                 int32
	NModified         int32
	Upserted          []bson.Value
	WriteErrors       []WriteError
	WriteConcernError *WriteConcernError
}

// ParseWriteResult extracts a WriteResult from a command reply document.
func ParseWriteResult(doc *bson.Document) WriteResult {
	var r WriteResult
	if v, ok := doc.Lookup("n"); ok {
		r.N = asInt32(v)
	}
	if v, ok := doc.Lookup("nModified"); ok {
		r.NModified = asInt32(v)
	}
	if v, ok := doc.Lookup("upserted"); ok && v.Kind() == bson.KindArray {
		for _, e := range v.AsDocument().Elements() {
			r.Upserted = append(r.Upserted, e.Value)
		}
	}
	if v, ok := doc.Lookup("writeErrors"); ok && v.Kind() == bson.KindArray {
		for _, e := range v.AsDocument().Elements() {
			we := e.Value.AsDocument()
			var idx int
			var code int32
			var msg string
			if iv, ok := we.Lookup("index"); ok {
				idx = int(asInt32(iv))
			}
			if cv, ok := we.Lookup("code"); ok {
				code = asInt32(cv)
			}
			if mv, ok := we.Lookup("errmsg"); ok && mv.Kind() == bson.KindString {
				msg = mv.AsString()
			}
			r.WriteErrors = append(r.WriteErrors, WriteError{Index: idx, Code: code, Message: msg})
		}
	}
	if v, ok := doc.Lookup("writeConcernError"); ok && v.Kind() == bson.KindDocument {
		wce := v.AsDocument()
		var code int32
		var msg string
		if cv, ok := wce.Lookup("code"); ok {
			code = asInt32(cv)
		}
		if mv, ok := wce.Lookup("errmsg"); ok && mv.Kind() == bson.KindString {
			msg = mv.AsString()
		}
		r.WriteConcernError = &WriteConcernError{Code: code, Message: msg}
	}
	return r
}

func asInt32(v bson.Value) int32 {
	switch v.Kind() {
	case bson.KindInt32:
		return v.AsInt32()
	case bson.KindInt64:
		return int32(v.AsInt64())
	case bson.KindDouble:
		return int32(v.AsDouble())
	default:
		return 0
	}
}

// Insert builds the insert command document for a single batch of docs.
func Insert(collection string, docs []*bson.Document, ordered bool, wc *writeconcern.WriteConcern) *bson.Document {
	cmd := bson.NewDocument(
		bson.Elem{Key: "insert", Value: bson.String(collection)},
		bson.Elem{Key: "documents", Value: bson.Array(bson.ArrayFromValues(docValues(docs)...))},
		bson.Elem{Key: "ordered", Value: bson.Boolean(ordered)},
	)
	appendWriteConcern(cmd, wc)
	return cmd
}

// UpdateModel is one element of an update command's updates array.
type UpdateModel struct {
	Selector *bson.Document
	Update   *bson.Document
	Multi    bool
	Upsert   bool
}

// Update builds the update command document for a batch of UpdateModels.
func Update(collection string, models []UpdateModel, ordered bool, wc *writeconcern.WriteConcern) *bson.Document {
	updates := make([]bson.Value, 0, len(models))
	for _, m := range models {
		updates = append(updates, bson.DocumentValue(bson.NewDocument(
			bson.Elem{Key: "q", Value: bson.DocumentValue(m.Selector)},
			bson.Elem{Key: "u", Value: bson.DocumentValue(m.Update)},
			bson.Elem{Key: "multi", Value: bson.Boolean(m.Multi)},
			bson.Elem{Key: "upsert", Value: bson.Boolean(m.Upsert)},
		)))
	}
	cmd := bson.NewDocument(
		bson.Elem{Key: "update", Value: bson.String(collection)},
		bson.Elem{Key: "updates", Value: bson.Array(bson.ArrayFromValues(updates...))},
		bson.Elem{Key: "ordered", Value: bson.Boolean(ordered)},
	)
	appendWriteConcern(cmd, wc)
	return cmd
}

// DeleteModel is one element of a delete command's deletes array.
type DeleteModel struct {
	Selector *bson.Document
	Limit    int32 // 0 = delete all matching, 1 = delete one
}

// Delete builds the delete command document for a batch of DeleteModels.
func Delete(collection string, models []DeleteModel, ordered bool, wc *writeconcern.WriteConcern) *bson.Document {
	deletes := make([]bson.Value, 0, len(models))
	for _, m := range models {
		deletes = append(deletes, bson.DocumentValue(bson.NewDocument(
			bson.Elem{Key: "q", Value: bson.DocumentValue(m.Selector)},
			bson.Elem{Key: "limit", Value: bson.Int32(m.Limit)},
		)))
	}
	cmd := bson.NewDocument(
		bson.Elem{Key: "delete", Value: bson.String(collection)},
		bson.Elem{Key: "deletes", Value: bson.Array(bson.ArrayFromValues(deletes...))},
		bson.Elem{Key: "ordered", Value: bson.Boolean(ordered)},
	)
	appendWriteConcern(cmd, wc)
	return cmd
}

// FindOptions configures a find command, per §4.9.
type FindOptions struct {
	Filter     *bson.Document
	Projection *bson.Document
	Sort       *bson.Document
	Skip       int64
	Limit      int64
	BatchSize  int32
}

// Find builds the find command document.
func Find(collection string, opts FindOptions) *bson.Document {
	filter := opts.Filter
	if filter == nil {
		filter = bson.NewDocument()
	}
	cmd := bson.NewDocument(
		bson.Elem{Key: "find", Value: bson.String(collection)},
		bson.Elem{Key: "filter", Value: bson.DocumentValue(filter)},
	)
	if opts.Projection != nil {
		cmd.Append("projection", bson.DocumentValue(opts.Projection))
	}
	if opts.Sort != nil {
		cmd.Append("sort", bson.DocumentValue(opts.Sort))
	}
	if opts.Skip > 0 {
		cmd.Append("skip", bson.Int64(opts.Skip))
	}
	if opts.Limit != 0 {
		cmd.Append("limit", bson.Int64(opts.Limit))
	}
	if opts.BatchSize > 0 {
		cmd.Append("batchSize", bson.Int32(opts.BatchSize))
	}
	return cmd
}

// FindAndModify builds a findAndModify command document.
func FindAndModify(collection string, filter, update, sort, projection *bson.Document, remove, upsert, returnNew bool) *bson.Document {
	cmd := bson.NewDocument(
		bson.Elem{Key: "findAndModify", Value: bson.String(collection)},
		bson.Elem{Key: "query", Value: bson.DocumentValue(filter)},
	)
	if remove {
		cmd.Append("remove", bson.Boolean(true))
	} else {
		cmd.Append("update", bson.DocumentValue(update))
		cmd.Append("upsert", bson.Boolean(upsert))
		cmd.Append("new", bson.Boolean(returnNew))
	}
	if sort != nil {
		cmd.Append("sort", bson.DocumentValue(sort))
	}
	if projection != nil {
		cmd.Append("fields", bson.DocumentValue(projection))
	}
	return cmd
}

// Count builds a count command document.
func Count(collection string, filter *bson.Document) *bson.Document {
	if filter == nil {
		filter = bson.NewDocument()
	}
	return bson.NewDocument(
		bson.Elem{Key: "count", Value: bson.String(collection)},
		bson.Elem{Key: "query", Value: bson.DocumentValue(filter)},
	)
}

// Distinct builds a distinct command document.
func Distinct(collection, key string, filter *bson.Document) *bson.Document {
	if filter == nil {
		filter = bson.NewDocument()
	}
	return bson.NewDocument(
		bson.Elem{Key: "distinct", Value: bson.String(collection)},
		bson.Elem{Key: "key", Value: bson.String(key)},
		bson.Elem{Key: "query", Value: bson.DocumentValue(filter)},
	)
}

// Aggregate builds an aggregate command document with a cursor sub-document.
func Aggregate(collection string, pipeline []*bson.Document, batchSize int32) *bson.Document {
	stages := make([]bson.Value, 0, len(pipeline))
	for _, p := range pipeline {
		stages = append(stages, bson.DocumentValue(p))
	}
	cursor := bson.NewDocument()
	if batchSize > 0 {
		cursor.Append("batchSize", bson.Int32(batchSize))
	}
	return bson.NewDocument(
		bson.Elem{Key: "aggregate", Value: bson.String(collection)},
		bson.Elem{Key: "pipeline", Value: bson.Array(bson.ArrayFromValues(stages...))},
		bson.Elem{Key: "cursor", Value: bson.DocumentValue(cursor)},
	)
}

// CreateIndex builds a createIndexes command document for a single index.
func CreateIndex(collection, name string, keys *bson.Document, unique bool) *bson.Document {
	idx := bson.NewDocument(
		bson.Elem{Key: "key", Value: bson.DocumentValue(keys)},
		bson.Elem{Key: "name", Value: bson.String(name)},
	)
	if unique {
		idx.Append("unique", bson.Boolean(true))
	}
	return bson.NewDocument(
		bson.Elem{Key: "createIndexes", Value: bson.String(collection)},
		bson.Elem{Key: "indexes", Value: bson.Array(bson.ArrayFromValues(bson.DocumentValue(idx)))},
	)
}

// DropIndex builds a dropIndexes command document.
func DropIndex(collection, name string) *bson.Document {
	return bson.NewDocument(
		bson.Elem{Key: "dropIndexes", Value: bson.String(collection)},
		bson.Elem{Key: "index", Value: bson.String(name)},
	)
}

// DropCollection builds a drop command document.
func DropCollection(collection string) *bson.Document {
	return bson.NewDocument(bson.Elem{Key: "drop", Value: bson.String(collection)})
}

// ListCollections builds a listCollections command document.
func ListCollections(filter *bson.Document) *bson.Document {
	cmd := bson.NewDocument(bson.Elem{Key: "listCollections", Value: bson.Int32(1)})
	if filter != nil {
		cmd.Append("filter", bson.DocumentValue(filter))
	}
	return cmd
}

// ListDatabases builds a listDatabases command document.
func ListDatabases() *bson.Document {
	return bson.NewDocument(bson.Elem{Key: "listDatabases", Value: bson.Int32(1)})
}

func appendWriteConcern(cmd *bson.Document, wc *writeconcern.WriteConcern) {
	if d := wc.ToDocument(); d != nil {
		cmd.Append("writeConcern", bson.DocumentValue(d))
	}
}

func docValues(docs []*bson.Document) []bson.Value {
	out := make([]bson.Value, len(docs))
	for i, d := range docs {
		out[i] = bson.DocumentValue(d)
	}
	return out
}

// SplitInserts batches docs for the insert command, keeping each batch at
// or under maxCount operations and targetBatchSize encoded bytes, per
// §4.10. The bulk write engine does not use it: its own batching caps
// batches by operation count only, not by encoded size.
func SplitInserts(docs []*bson.Document, maxCount, targetBatchSize int) ([][]*bson.Document, error) {
	if targetBatchSize > reservedCommandBufferBytes {
		targetBatchSize -= reservedCommandBufferBytes
	}
	if maxCount <= 0 {
		maxCount = 1
	}

	var batches [][]*bson.Document
	startAt := 0
	for startAt < len(docs) {
		size := 0
		var batch []*bson.Document
		for idx := startAt; idx < len(docs); idx++ {
			encoded, err := bson.Encode(docs[idx])
			if err != nil {
				return nil, err
			}
			itsize := len(encoded)
			if len(batch) > 0 && size+itsize > targetBatchSize {
				break
			}
			size += itsize
			batch = append(batch, docs[idx])
			startAt++
			if len(batch) == maxCount {
				break
			}
		}
		if len(batch) == 0 {
			// A single document larger than targetBatchSize still must be
			// sent alone rather than looping forever.
			batch = append(batch, docs[startAt])
			startAt++
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
