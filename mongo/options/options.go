// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package options holds the functional-options structs accepted by the
// mongo package's Collection/Database/Client/Bucket constructors and
// operations, per SPEC_FULL.md's "Configuration" ambient-stack entry.
// Filter/update/projection arguments are *bson.Document directly, per
// spec.md §1: "how users construct filter/update documents ... is not
// part of this spec beyond the document model itself."
package options

import (
	"time"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/readpref"
	"github.com/coredb-io/coredb-go-driver/writeconcern"
)

// ClientOptions configures a Client at Connect time.
type ClientOptions struct {
	ReadPreference *readpref.ReadPreference
	WriteConcern   *writeconcern.WriteConcern
	AppName        string
	MaxPoolSize    int
}

// Client returns an empty ClientOptions ready for Set calls.
func Client() *ClientOptions { return &ClientOptions{} }

// SetReadPreference sets the Client's default read preference.
func (o *ClientOptions) SetReadPreference(rp *readpref.ReadPreference) *ClientOptions {
	o.ReadPreference = rp
	return o
}

// SetWriteConcern sets the Client's default write concern.
func (o *ClientOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *ClientOptions {
	o.WriteConcern = wc
	return o
}

// SetAppName sets the application name reported in the isMaster handshake.
func (o *ClientOptions) SetAppName(name string) *ClientOptions {
	o.AppName = name
	return o
}

// SetMaxPoolSize overrides the per-server connection pool capacity.
func (o *ClientOptions) SetMaxPoolSize(n int) *ClientOptions {
	o.MaxPoolSize = n
	return o
}

// DatabaseOptions configures a Database handle, overriding what it would
// otherwise inherit from its Client.
type DatabaseOptions struct {
	ReadPreference *readpref.ReadPreference
	WriteConcern   *writeconcern.WriteConcern
}

// Database returns an empty DatabaseOptions ready for Set calls.
func Database() *DatabaseOptions { return &DatabaseOptions{} }

// SetReadPreference overrides the database's read preference.
func (o *DatabaseOptions) SetReadPreference(rp *readpref.ReadPreference) *DatabaseOptions {
	o.ReadPreference = rp
	return o
}

// SetWriteConcern overrides the database's write concern.
func (o *DatabaseOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *DatabaseOptions {
	o.WriteConcern = wc
	return o
}

// CollectionOptions configures a Collection handle, overriding what it
// would otherwise inherit from its Database.
type CollectionOptions struct {
	ReadPreference *readpref.ReadPreference
	WriteConcern   *writeconcern.WriteConcern
}

// Collection returns an empty CollectionOptions ready for Set calls.
func Collection() *CollectionOptions { return &CollectionOptions{} }

// SetReadPreference overrides the collection's read preference.
func (o *CollectionOptions) SetReadPreference(rp *readpref.ReadPreference) *CollectionOptions {
	o.ReadPreference = rp
	return o
}

// SetWriteConcern overrides the collection's write concern.
func (o *CollectionOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *CollectionOptions {
	o.WriteConcern = wc
	return o
}

// FindOptions configures Collection.Find, per spec.md §4.9.
type FindOptions struct {
	Projection *bson.Document
	Sort       *bson.Document
	Skip       int64
	Limit      int64
	BatchSize  int32
	Tailable   bool
	AwaitData  bool
}

// Find returns an empty FindOptions ready for Set calls.
func Find() *FindOptions { return &FindOptions{} }

// SetProjection sets the field projection document.
func (o *FindOptions) SetProjection(p *bson.Document) *FindOptions { o.Projection = p; return o }

// SetSort sets the sort document.
func (o *FindOptions) SetSort(s *bson.Document) *FindOptions { o.Sort = s; return o }

// SetSkip sets the number of matching documents to skip.
func (o *FindOptions) SetSkip(n int64) *FindOptions { o.Skip = n; return o }

// SetLimit caps the number of documents the cursor will return.
func (o *FindOptions) SetLimit(n int64) *FindOptions { o.Limit = n; return o }

// SetBatchSize sets the number of documents requested per batch.
func (o *FindOptions) SetBatchSize(n int32) *FindOptions { o.BatchSize = n; return o }

// SetTailable records that the cursor is tailable. Collection.Find does not
// send it to the server; the find command carries no tailable flag.
func (o *FindOptions) SetTailable(b bool) *FindOptions { o.Tailable = b; return o }

// SetAwaitData records that the cursor is await-data. Collection.Find does
// not send it to the server; the find command carries no awaitData flag.
func (o *FindOptions) SetAwaitData(b bool) *FindOptions { o.AwaitData = b; return o }

// FindOneOptions configures Collection.FindOne.
type FindOneOptions struct {
	Projection *bson.Document
	Sort       *bson.Document
	Skip       int64
}

// FindOne returns an empty FindOneOptions ready for Set calls.
func FindOne() *FindOneOptions { return &FindOneOptions{} }

// SetProjection sets the field projection document.
func (o *FindOneOptions) SetProjection(p *bson.Document) *FindOneOptions { o.Projection = p; return o }

// SetSort sets the sort document.
func (o *FindOneOptions) SetSort(s *bson.Document) *FindOneOptions { o.Sort = s; return o }

// CountOptions configures Collection.Count.
type CountOptions struct {
	Limit int64
	Skip  int64
}

// Count returns an empty CountOptions ready for Set calls.
func Count() *CountOptions { return &CountOptions{} }

// SetLimit caps the number of matching documents counted.
func (o *CountOptions) SetLimit(n int64) *CountOptions { o.Limit = n; return o }

// SetSkip sets the number of matching documents skipped before counting.
func (o *CountOptions) SetSkip(n int64) *CountOptions { o.Skip = n; return o }

// DistinctOptions configures Collection.Distinct.
type DistinctOptions struct {
	MaxTime time.Duration
}

// Distinct returns an empty DistinctOptions ready for Set calls.
func Distinct() *DistinctOptions { return &DistinctOptions{} }

// SetMaxTime records a server-side execution time bound. Collection.Distinct
// does not send it; a maxTimeMS is sent only from a deadline on ctx.
func (o *DistinctOptions) SetMaxTime(d time.Duration) *DistinctOptions { o.MaxTime = d; return o }

// AggregateOptions configures Collection.Aggregate.
type AggregateOptions struct {
	BatchSize int32
}

// Aggregate returns an empty AggregateOptions ready for Set calls.
func Aggregate() *AggregateOptions { return &AggregateOptions{} }

// SetBatchSize sets the number of documents requested per batch.
func (o *AggregateOptions) SetBatchSize(n int32) *AggregateOptions { o.BatchSize = n; return o }

// InsertOneOptions configures Collection.InsertOne. Currently carries no
// fields beyond what spec.md names; kept as a distinct type so a future
// per-operation knob (bypassDocumentValidation, comment) has a home
// without changing InsertOne's signature.
type InsertOneOptions struct{}

// InsertOne returns an empty InsertOneOptions.
func InsertOne() *InsertOneOptions { return &InsertOneOptions{} }

// InsertManyOptions configures Collection.InsertMany.
type InsertManyOptions struct {
	Ordered bool
}

// InsertMany returns an InsertManyOptions defaulting Ordered to true,
// matching the server's own default.
func InsertMany() *InsertManyOptions { return &InsertManyOptions{Ordered: true} }

// SetOrdered sets whether InsertMany stops at the first failing document.
func (o *InsertManyOptions) SetOrdered(b bool) *InsertManyOptions { o.Ordered = b; return o }

// UpdateOptions configures Collection.UpdateOne/UpdateMany/ReplaceOne.
type UpdateOptions struct {
	Upsert bool
}

// Update returns an empty UpdateOptions ready for Set calls.
func Update() *UpdateOptions { return &UpdateOptions{} }

// SetUpsert sets whether the update inserts a new document when nothing matches.
func (o *UpdateOptions) SetUpsert(b bool) *UpdateOptions { o.Upsert = b; return o }

// DeleteOptions configures Collection.DeleteOne/DeleteMany. Currently
// carries no fields; kept for signature stability.
type DeleteOptions struct{}

// Delete returns an empty DeleteOptions.
func Delete() *DeleteOptions { return &DeleteOptions{} }

// FindOneAndUpdateOptions configures Collection.FindOneAndUpdate.
type FindOneAndUpdateOptions struct {
	Sort           *bson.Document
	Projection     *bson.Document
	Upsert         bool
	ReturnDocument ReturnDocument
}

// FindOneAndUpdate returns an empty FindOneAndUpdateOptions ready for Set calls.
func FindOneAndUpdate() *FindOneAndUpdateOptions { return &FindOneAndUpdateOptions{} }

// SetSort sets the sort document used to pick among multiple matches.
func (o *FindOneAndUpdateOptions) SetSort(s *bson.Document) *FindOneAndUpdateOptions {
	o.Sort = s
	return o
}

// SetProjection sets the field projection document.
func (o *FindOneAndUpdateOptions) SetProjection(p *bson.Document) *FindOneAndUpdateOptions {
	o.Projection = p
	return o
}

// SetUpsert sets whether the operation inserts a new document when nothing matches.
func (o *FindOneAndUpdateOptions) SetUpsert(b bool) *FindOneAndUpdateOptions { o.Upsert = b; return o }

// SetReturnDocument controls whether the pre- or post-update document is returned.
func (o *FindOneAndUpdateOptions) SetReturnDocument(rd ReturnDocument) *FindOneAndUpdateOptions {
	o.ReturnDocument = rd
	return o
}

// FindOneAndReplaceOptions configures Collection.FindOneAndReplace.
type FindOneAndReplaceOptions struct {
	Sort           *bson.Document
	Projection     *bson.Document
	Upsert         bool
	ReturnDocument ReturnDocument
}

// FindOneAndReplace returns an empty FindOneAndReplaceOptions ready for Set calls.
func FindOneAndReplace() *FindOneAndReplaceOptions { return &FindOneAndReplaceOptions{} }

// SetSort sets the sort document used to pick among multiple matches.
func (o *FindOneAndReplaceOptions) SetSort(s *bson.Document) *FindOneAndReplaceOptions {
	o.Sort = s
	return o
}

// SetProjection sets the field projection document.
func (o *FindOneAndReplaceOptions) SetProjection(p *bson.Document) *FindOneAndReplaceOptions {
	o.Projection = p
	return o
}

// SetUpsert sets whether the operation inserts a new document when nothing matches.
func (o *FindOneAndReplaceOptions) SetUpsert(b bool) *FindOneAndReplaceOptions {
	o.Upsert = b
	return o
}

// SetReturnDocument controls whether the pre- or post-replace document is returned.
func (o *FindOneAndReplaceOptions) SetReturnDocument(rd ReturnDocument) *FindOneAndReplaceOptions {
	o.ReturnDocument = rd
	return o
}

// FindOneAndDeleteOptions configures Collection.FindOneAndDelete.
type FindOneAndDeleteOptions struct {
	Sort       *bson.Document
	Projection *bson.Document
}

// FindOneAndDelete returns an empty FindOneAndDeleteOptions ready for Set calls.
func FindOneAndDelete() *FindOneAndDeleteOptions { return &FindOneAndDeleteOptions{} }

// SetSort sets the sort document used to pick among multiple matches.
func (o *FindOneAndDeleteOptions) SetSort(s *bson.Document) *FindOneAndDeleteOptions {
	o.Sort = s
	return o
}

// SetProjection sets the field projection document.
func (o *FindOneAndDeleteOptions) SetProjection(p *bson.Document) *FindOneAndDeleteOptions {
	o.Projection = p
	return o
}

// ReturnDocument selects which version of a document findAndModify returns.
type ReturnDocument int

// The two ReturnDocument choices.
const (
	Before ReturnDocument = iota
	After
)

// IndexModel describes one index to create via Collection.CreateIndex.
type IndexModel struct {
	Keys    *bson.Document
	Name    string
	Unique  bool
}

// CreateIndexesOptions configures Collection.CreateIndex. Currently
// carries no fields; kept for signature stability alongside IndexModel.
type CreateIndexesOptions struct{}

// CreateIndexes returns an empty CreateIndexesOptions.
func CreateIndexes() *CreateIndexesOptions { return &CreateIndexesOptions{} }

// ListCollectionsOptions configures Database.ListCollections.
type ListCollectionsOptions struct {
	Filter *bson.Document
}

// ListCollections returns an empty ListCollectionsOptions ready for Set calls.
func ListCollections() *ListCollectionsOptions { return &ListCollectionsOptions{} }

// SetFilter restricts the collections listed.
func (o *ListCollectionsOptions) SetFilter(f *bson.Document) *ListCollectionsOptions {
	o.Filter = f
	return o
}

// BulkWriteOptions configures Collection.BulkWrite, per spec.md §4.10.
type BulkWriteOptions struct {
	Ordered bool
}

// BulkWrite returns a BulkWriteOptions defaulting Ordered to true,
// matching the server's own default.
func BulkWrite() *BulkWriteOptions { return &BulkWriteOptions{Ordered: true} }

// SetOrdered sets whether a batch failure halts remaining batches, per §4.10.
func (o *BulkWriteOptions) SetOrdered(b bool) *BulkWriteOptions { o.Ordered = b; return o }
