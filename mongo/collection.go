// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/bulk"
	"github.com/coredb-io/coredb-go-driver/command"
	"github.com/coredb-io/coredb-go-driver/mongo/options"
	"github.com/coredb-io/coredb-go-driver/readpref"
	"github.com/coredb-io/coredb-go-driver/topology"
	"github.com/coredb-io/coredb-go-driver/writeconcern"
)

// Collection is a handle to a named collection within a Database, per §4.9.
type Collection struct {
	db             *Database
	name           string
	readPreference *readpref.ReadPreference
	writeConcern   *writeconcern.WriteConcern
}

// Database returns the Collection's originating Database.
func (coll *Collection) Database() *Database { return coll.db }

// Name returns the collection's name.
func (coll *Collection) Name() string { return coll.name }

func (coll *Collection) fullName() string { return coll.db.name + "." + coll.name }

func emptyFilter(filter *bson.Document) *bson.Document {
	if filter == nil {
		return bson.NewDocument()
	}
	return filter
}

// withID returns doc unchanged if it already carries an "_id", otherwise
// a new document with a freshly generated ObjectID prepended, per the
// server's own insert convention.
func withID(doc *bson.Document) (*bson.Document, bson.Value) {
	if v, ok := doc.Lookup("_id"); ok {
		return doc, v
	}
	id := bson.ObjectIDValue(bson.NewObjectID())
	out := bson.NewDocument(bson.Elem{Key: "_id", Value: id})
	for _, e := range doc.Elements() {
		out.Append(e.Key, e.Value)
	}
	return out, id
}

// Find runs the find command and returns a streaming Cursor over the
// matches, per §4.9/§4.8.
func (coll *Collection) Find(ctx context.Context, filter *bson.Document, opts ...*options.FindOptions) (*Cursor, error) {
	fo := &options.FindOptions{}
	for _, o := range opts {
		if o != nil {
			fo = o
		}
	}
	cmd := command.Find(coll.name, command.FindOptions{
		Filter:     emptyFilter(filter),
		Projection: fo.Projection,
		Sort:       fo.Sort,
		Skip:       fo.Skip,
		Limit:      fo.Limit,
		BatchSize:  fo.BatchSize,
	})
	return coll.db.client.runCursorCommand(ctx, topology.ReadOperation, coll.readPreference, coll.db.name, cmd, coll.fullName(), fo.BatchSize, fo.Tailable, fo.AwaitData)
}

// FindOne runs a find command limited to one result and returns it
// directly, or ErrNoDocuments if nothing matched.
func (coll *Collection) FindOne(ctx context.Context, filter *bson.Document, opts ...*options.FindOneOptions) (*bson.Document, error) {
	fo := &options.FindOneOptions{}
	for _, o := range opts {
		if o != nil {
			fo = o
		}
	}
	cmd := command.Find(coll.name, command.FindOptions{
		Filter:     emptyFilter(filter),
		Projection: fo.Projection,
		Sort:       fo.Sort,
		Skip:       fo.Skip,
		Limit:      1,
		BatchSize:  1,
	})
	cur, err := coll.db.client.runCursorCommand(ctx, topology.ReadOperation, coll.readPreference, coll.db.name, cmd, coll.fullName(), 1, false, false)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	doc, ok, err := cur.Next(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoDocuments
	}
	return doc, nil
}

// InsertOne inserts a single document, generating an ObjectID "_id" if one
// is not already present.
func (coll *Collection) InsertOne(ctx context.Context, doc *bson.Document, _ ...*options.InsertOneOptions) (*InsertOneResult, error) {
	doc, id := withID(doc)
	cmd := command.Insert(coll.name, []*bson.Document{doc}, true, coll.writeConcern)
	reply, err := coll.db.client.runCommand(ctx, topology.WriteOperation, nil, coll.db.name, cmd)
	if err != nil {
		return nil, err
	}
	wr := command.ParseWriteResult(reply)
	if len(wr.WriteErrors) > 0 {
		return nil, &command.WriteError{Index: wr.WriteErrors[0].Index, Code: wr.WriteErrors[0].Code, Message: wr.WriteErrors[0].Message}
	}
	return &InsertOneResult{InsertedID: id}, nil
}

// InsertMany inserts docs, splitting them into server-sized batches per
// §4.10's batching rule and generating ObjectIDs for any document missing
// "_id". Ordered by default, matching the server's own default.
func (coll *Collection) InsertMany(ctx context.Context, docs []*bson.Document, opts ...*options.InsertManyOptions) (*InsertManyResult, error) {
	imo := options.InsertMany()
	for _, o := range opts {
		if o != nil {
			imo = o
		}
	}

	ids := make([]bson.Value, len(docs))
	withIDs := make([]*bson.Document, len(docs))
	for i, d := range docs {
		withIDs[i], ids[i] = withID(d)
	}

	batches, err := command.SplitInserts(withIDs, command.DefaultMaxBatchCount, command.DefaultMaxMessageSizeBytes)
	if err != nil {
		return nil, err
	}

	for _, batch := range batches {
		cmd := command.Insert(coll.name, batch, imo.Ordered, coll.writeConcern)
		reply, err := coll.db.client.runCommand(ctx, topology.WriteOperation, nil, coll.db.name, cmd)
		if err != nil {
			return nil, err
		}
		wr := command.ParseWriteResult(reply)
		if len(wr.WriteErrors) > 0 {
			we := wr.WriteErrors[0]
			if imo.Ordered {
				return &InsertManyResult{InsertedIDs: ids}, &command.WriteError{Index: we.Index, Code: we.Code, Message: we.Message}
			}
		}
	}
	return &InsertManyResult{InsertedIDs: ids}, nil
}

func (coll *Collection) updateOne(ctx context.Context, filter, update *bson.Document, multi bool, opts *options.UpdateOptions) (*UpdateResult, error) {
	model := command.UpdateModel{Selector: emptyFilter(filter), Update: update, Multi: multi}
	if opts != nil {
		model.Upsert = opts.Upsert
	}
	cmd := command.Update(coll.name, []command.UpdateModel{model}, true, coll.writeConcern)
	reply, err := coll.db.client.runCommand(ctx, topology.WriteOperation, nil, coll.db.name, cmd)
	if err != nil {
		return nil, err
	}
	wr := command.ParseWriteResult(reply)
	if len(wr.WriteErrors) > 0 {
		return nil, &command.WriteError{Index: wr.WriteErrors[0].Index, Code: wr.WriteErrors[0].Code, Message: wr.WriteErrors[0].Message}
	}
	res := &UpdateResult{MatchedCount: int64(wr.N), ModifiedCount: int64(wr.NModified)}
	if len(wr.Upserted) > 0 {
		res.UpsertedID = wr.Upserted[0]
		res.UpsertedCount = 1
	}
	return res, nil
}

// UpdateOne applies update to at most one matching document.
func (coll *Collection) UpdateOne(ctx context.Context, filter, update *bson.Document, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	return coll.updateOne(ctx, filter, update, false, mergeUpdateOptions(opts))
}

// UpdateMany applies update to every matching document.
func (coll *Collection) UpdateMany(ctx context.Context, filter, update *bson.Document, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	return coll.updateOne(ctx, filter, update, true, mergeUpdateOptions(opts))
}

// ReplaceOne replaces at most one matching document with replacement.
func (coll *Collection) ReplaceOne(ctx context.Context, filter, replacement *bson.Document, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	return coll.updateOne(ctx, filter, replacement, false, mergeUpdateOptions(opts))
}

func mergeUpdateOptions(opts []*options.UpdateOptions) *options.UpdateOptions {
	merged := options.Update()
	for _, o := range opts {
		if o != nil {
			merged = o
		}
	}
	return merged
}

func (coll *Collection) deleteMany(ctx context.Context, filter *bson.Document, limit int32) (*DeleteResult, error) {
	cmd := command.Delete(coll.name, []command.DeleteModel{{Selector: emptyFilter(filter), Limit: limit}}, true, coll.writeConcern)
	reply, err := coll.db.client.runCommand(ctx, topology.WriteOperation, nil, coll.db.name, cmd)
	if err != nil {
		return nil, err
	}
	wr := command.ParseWriteResult(reply)
	if len(wr.WriteErrors) > 0 {
		return nil, &command.WriteError{Index: wr.WriteErrors[0].Index, Code: wr.WriteErrors[0].Code, Message: wr.WriteErrors[0].Message}
	}
	return &DeleteResult{DeletedCount: int64(wr.N)}, nil
}

// DeleteOne deletes at most one matching document.
func (coll *Collection) DeleteOne(ctx context.Context, filter *bson.Document, _ ...*options.DeleteOptions) (*DeleteResult, error) {
	return coll.deleteMany(ctx, filter, 1)
}

// DeleteMany deletes every matching document.
func (coll *Collection) DeleteMany(ctx context.Context, filter *bson.Document, _ ...*options.DeleteOptions) (*DeleteResult, error) {
	return coll.deleteMany(ctx, filter, 0)
}

// FindOneAndDelete atomically finds and removes a single document,
// returning the document as it was before removal.
func (coll *Collection) FindOneAndDelete(ctx context.Context, filter *bson.Document, opts ...*options.FindOneAndDeleteOptions) (*bson.Document, error) {
	fo := &options.FindOneAndDeleteOptions{}
	for _, o := range opts {
		if o != nil {
			fo = o
		}
	}
	cmd := command.FindAndModify(coll.name, emptyFilter(filter), nil, fo.Sort, fo.Projection, true, false, false)
	return coll.findAndModify(ctx, cmd)
}

// FindOneAndReplace atomically finds and replaces a single document.
func (coll *Collection) FindOneAndReplace(ctx context.Context, filter, replacement *bson.Document, opts ...*options.FindOneAndReplaceOptions) (*bson.Document, error) {
	fo := &options.FindOneAndReplaceOptions{}
	for _, o := range opts {
		if o != nil {
			fo = o
		}
	}
	cmd := command.FindAndModify(coll.name, emptyFilter(filter), replacement, fo.Sort, fo.Projection, false, fo.Upsert, fo.ReturnDocument == options.After)
	return coll.findAndModify(ctx, cmd)
}

// FindOneAndUpdate atomically finds and updates a single document.
func (coll *Collection) FindOneAndUpdate(ctx context.Context, filter, update *bson.Document, opts ...*options.FindOneAndUpdateOptions) (*bson.Document, error) {
	fo := &options.FindOneAndUpdateOptions{}
	for _, o := range opts {
		if o != nil {
			fo = o
		}
	}
	cmd := command.FindAndModify(coll.name, emptyFilter(filter), update, fo.Sort, fo.Projection, false, fo.Upsert, fo.ReturnDocument == options.After)
	return coll.findAndModify(ctx, cmd)
}

func (coll *Collection) findAndModify(ctx context.Context, cmd *bson.Document) (*bson.Document, error) {
	reply, err := coll.db.client.runCommand(ctx, topology.WriteOperation, nil, coll.db.name, cmd)
	if err != nil {
		return nil, err
	}
	v, ok := reply.Lookup("value")
	if !ok || v.Kind() != bson.KindDocument {
		return nil, ErrNoDocuments
	}
	return v.AsDocument(), nil
}

// Count returns the number of documents matching filter.
func (coll *Collection) Count(ctx context.Context, filter *bson.Document, opts ...*options.CountOptions) (int64, error) {
	co := &options.CountOptions{}
	for _, o := range opts {
		if o != nil {
			co = o
		}
	}
	cmd := command.Count(coll.name, emptyFilter(filter))
	if co.Limit > 0 {
		cmd.Append("limit", bson.Int64(co.Limit))
	}
	if co.Skip > 0 {
		cmd.Append("skip", bson.Int64(co.Skip))
	}
	reply, err := coll.db.client.runCommand(ctx, topology.ReadOperation, coll.readPreference, coll.db.name, cmd)
	if err != nil {
		return 0, err
	}
	v, ok := reply.Lookup("n")
	if !ok {
		return 0, &command.ResponseError{Field: "n"}
	}
	return asInt64(v), nil
}

// Distinct returns the distinct values of fieldName among matching documents.
func (coll *Collection) Distinct(ctx context.Context, fieldName string, filter *bson.Document, _ ...*options.DistinctOptions) ([]bson.Value, error) {
	cmd := command.Distinct(coll.name, fieldName, emptyFilter(filter))
	reply, err := coll.db.client.runCommand(ctx, topology.ReadOperation, coll.readPreference, coll.db.name, cmd)
	if err != nil {
		return nil, err
	}
	v, ok := reply.Lookup("values")
	if !ok || v.Kind() != bson.KindArray {
		return nil, &command.ResponseError{Field: "values"}
	}
	var out []bson.Value
	for _, e := range v.AsDocument().Elements() {
		out = append(out, e.Value)
	}
	return out, nil
}

// Aggregate runs an aggregation pipeline and returns a streaming Cursor
// over its results, reusing the find/get-more path, per SPEC_FULL.md's
// §4.9 supplement.
func (coll *Collection) Aggregate(ctx context.Context, pipeline []*bson.Document, opts ...*options.AggregateOptions) (*Cursor, error) {
	ao := &options.AggregateOptions{}
	for _, o := range opts {
		if o != nil {
			ao = o
		}
	}
	cmd := command.Aggregate(coll.name, pipeline, ao.BatchSize)
	return coll.db.client.runCursorCommand(ctx, topology.ReadOperation, coll.readPreference, coll.db.name, cmd, coll.fullName(), ao.BatchSize, false, false)
}

// CreateIndex creates a single index and returns its name.
func (coll *Collection) CreateIndex(ctx context.Context, model options.IndexModel, _ ...*options.CreateIndexesOptions) (string, error) {
	name := model.Name
	if name == "" {
		name = defaultIndexName(model.Keys)
	}
	cmd := command.CreateIndex(coll.name, name, model.Keys, model.Unique)
	if _, err := coll.db.client.runCommand(ctx, topology.WriteOperation, nil, coll.db.name, cmd); err != nil {
		return "", err
	}
	return name, nil
}

func defaultIndexName(keys *bson.Document) string {
	name := ""
	for _, e := range keys.Elements() {
		if name != "" {
			name += "_"
		}
		dir := "1"
		if e.Value.Kind() == bson.KindInt32 && e.Value.AsInt32() < 0 {
			dir = "-1"
		}
		name += e.Key + "_" + dir
	}
	return name
}

// DropIndex drops a single named index.
func (coll *Collection) DropIndex(ctx context.Context, name string) error {
	_, err := coll.db.client.runCommand(ctx, topology.WriteOperation, nil, coll.db.name, command.DropIndex(coll.name, name))
	return err
}

// Drop drops the collection.
func (coll *Collection) Drop(ctx context.Context) error {
	_, err := coll.db.client.runCommand(ctx, topology.WriteOperation, nil, coll.db.name, command.DropCollection(coll.name))
	return err
}

// BulkWrite executes a heterogeneous list of write models, per §4.10.
func (coll *Collection) BulkWrite(ctx context.Context, models []bulk.WriteModel, opts ...*options.BulkWriteOptions) (*bulk.BulkWriteResult, *bulk.BulkWriteException) {
	bwo := options.BulkWrite()
	for _, o := range opts {
		if o != nil {
			bwo = o
		}
	}
	runner := &collectionCommandRunner{coll: coll}
	return bulk.Execute(ctx, runner, coll.name, models, bwo.Ordered, coll.writeConcern)
}

// collectionCommandRunner adapts Collection to bulk.CommandRunner,
// selecting a write-capable server fresh for each batch.
type collectionCommandRunner struct {
	coll *Collection
}

func (r *collectionCommandRunner) RunCommand(ctx context.Context, cmd *bson.Document) (*bson.Document, error) {
	return r.coll.db.client.runCommand(ctx, topology.WriteOperation, nil, r.coll.db.name, cmd)
}
