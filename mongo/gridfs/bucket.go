// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package gridfs stores files larger than a single document across two
// collections, per §4.11: grounded on mongo/gridfs/bucket.go and
// download_stream.go, adapted to this driver's *bson.Document model.
package gridfs

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/mongo"
	"github.com/coredb-io/coredb-go-driver/mongo/options"
	"github.com/coredb-io/coredb-go-driver/readpref"
)

// DefaultChunkSize is the default size of each file chunk, per §4.11.
const DefaultChunkSize int32 = 255 * 1024

// ErrFileNotFound is returned when a download or delete names a file ID
// or filename with no matching files document.
var ErrFileNotFound = errors.New("gridfs: file not found")

// ErrStreamClosed is returned by operations on an already-closed stream.
var ErrStreamClosed = errors.New("gridfs: stream is closed")

// Bucket stores files across a "<name>.files" metadata collection and a
// "<name>.chunks" data collection, per §4.11.
type Bucket struct {
	db         *mongo.Database
	filesColl  *mongo.Collection
	chunksColl *mongo.Collection

	name      string
	chunkSize int32

	mu             sync.Mutex
	firstWriteDone bool
}

// NewBucket returns a Bucket backed by db, defaulting to the "fs" prefix
// and a 255 KiB chunk size.
func NewBucket(db *mongo.Database, opts ...*BucketOptions) *Bucket {
	b := &Bucket{db: db, name: "fs", chunkSize: DefaultChunkSize}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Name != "" {
			b.name = o.Name
		}
		if o.ChunkSizeBytes > 0 {
			b.chunkSize = o.ChunkSizeBytes
		}
	}
	b.filesColl = db.Collection(b.name + ".files")
	b.chunksColl = db.Collection(b.name + ".chunks")
	return b
}

// OpenUploadStream opens a new upload stream for filename with a freshly
// generated file ID.
func (b *Bucket) OpenUploadStream(ctx context.Context, filename string, opts ...*UploadOptions) (*UploadStream, error) {
	return b.OpenUploadStreamWithID(ctx, bson.ObjectIDValue(bson.NewObjectID()), filename, opts...)
}

// OpenUploadStreamWithID opens a new upload stream for filename under the
// given file ID, which must be a bson.Value (typically an ObjectID).
func (b *Bucket) OpenUploadStreamWithID(ctx context.Context, fileID bson.Value, filename string, opts ...*UploadOptions) (*UploadStream, error) {
	if err := b.checkFirstWrite(ctx); err != nil {
		return nil, err
	}

	chunkSize := b.chunkSize
	var metadata *bson.Document
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ChunkSizeBytes > 0 {
			chunkSize = o.ChunkSizeBytes
		}
		if o.Metadata != nil {
			metadata = o.Metadata
		}
	}

	return newUploadStream(b.chunksColl, b.filesColl, fileID, filename, chunkSize, metadata), nil
}

// UploadFromStream reads source to completion and stores it as filename,
// returning the generated file ID.
func (b *Bucket) UploadFromStream(ctx context.Context, filename string, source io.Reader, opts ...*UploadOptions) (bson.Value, error) {
	us, err := b.OpenUploadStream(ctx, filename, opts...)
	if err != nil {
		return bson.Value{}, err
	}
	if _, err := io.Copy(us, source); err != nil {
		return bson.Value{}, err
	}
	if err := us.Close(ctx); err != nil {
		return bson.Value{}, err
	}
	return us.fileID, nil
}

// OpenDownloadStream opens a stream over the chunks of the file with the
// given ID, ordered by chunk index.
func (b *Bucket) OpenDownloadStream(ctx context.Context, fileID bson.Value) (*DownloadStream, error) {
	filter := bson.NewDocument(bson.Elem{Key: "_id", Value: fileID})
	return b.openDownloadStream(ctx, filter)
}

// OpenDownloadStreamByName opens a download stream for the most recently
// uploaded file with the given filename.
func (b *Bucket) OpenDownloadStreamByName(ctx context.Context, filename string) (*DownloadStream, error) {
	filter := bson.NewDocument(bson.Elem{Key: "filename", Value: bson.String(filename)})
	return b.openDownloadStream(ctx, filter)
}

func (b *Bucket) openDownloadStream(ctx context.Context, filter *bson.Document) (*DownloadStream, error) {
	fo := options.FindOne().SetSort(bson.NewDocument(bson.Elem{Key: "uploadDate", Value: bson.Int32(-1)}))
	fileDoc, err := b.filesColl.FindOne(ctx, filter, fo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	lengthV, ok := fileDoc.Lookup("length")
	if !ok {
		return nil, ErrFileNotFound
	}
	length := asInt64(lengthV)

	idV, ok := fileDoc.Lookup("_id")
	if !ok {
		return nil, ErrFileNotFound
	}

	if length == 0 {
		return newDownloadStream(nil, b.chunkSize, 0), nil
	}

	chunksFilter := bson.NewDocument(bson.Elem{Key: "files_id", Value: idV})
	sort := bson.NewDocument(bson.Elem{Key: "n", Value: bson.Int32(1)})
	cur, err := b.chunksColl.Find(ctx, chunksFilter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	return newDownloadStream(cur, b.chunkSize, length), nil
}

// DownloadToStream copies the named file's contents into dst.
func (b *Bucket) DownloadToStream(ctx context.Context, fileID bson.Value, dst io.Writer) (int64, error) {
	ds, err := b.OpenDownloadStream(ctx, fileID)
	if err != nil {
		return 0, err
	}
	defer ds.Close(ctx)
	return io.Copy(dst, ds)
}

// Delete removes the files document and every chunk for fileID.
func (b *Bucket) Delete(ctx context.Context, fileID bson.Value) error {
	res, err := b.filesColl.DeleteOne(ctx, bson.NewDocument(bson.Elem{Key: "_id", Value: fileID}))
	if err != nil {
		return err
	}
	if _, derr := b.chunksColl.DeleteMany(ctx, bson.NewDocument(bson.Elem{Key: "files_id", Value: fileID})); derr != nil {
		return derr
	}
	if res.DeletedCount == 0 {
		return ErrFileNotFound
	}
	return nil
}

// Rename changes the stored filename for fileID.
func (b *Bucket) Rename(ctx context.Context, fileID bson.Value, newFilename string) error {
	update := bson.NewDocument(bson.Elem{Key: "$set", Value: bson.DocumentValue(
		bson.NewDocument(bson.Elem{Key: "filename", Value: bson.String(newFilename)}),
	)})
	res, err := b.filesColl.UpdateOne(ctx, bson.NewDocument(bson.Elem{Key: "_id", Value: fileID}), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrFileNotFound
	}
	return nil
}

// Drop drops both the files and chunks collections backing the bucket.
func (b *Bucket) Drop(ctx context.Context) error {
	if err := b.filesColl.Drop(ctx); err != nil {
		return err
	}
	return b.chunksColl.Drop(ctx)
}

// checkFirstWrite lazily creates the (filename, uploadDate) and
// (files_id, n) indexes the first time this Bucket is used for a write,
// but only if the files collection was empty at that moment, per
// SPEC_FULL.md's §4.11 supplement, grounded on bucket.go's
// checkFirstWrite/createIndexes.
func (b *Bucket) checkFirstWrite(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.firstWriteDone {
		return nil
	}
	b.firstWriteDone = true

	primaryFiles := b.db.Client().Database(b.db.Name(), options.Database().SetReadPreference(readpref.Primary())).Collection(b.name + ".files")
	n, err := primaryFiles.Count(ctx, bson.NewDocument(), options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n != 0 {
		return nil
	}

	filesKeys := bson.NewDocument(
		bson.Elem{Key: "filename", Value: bson.Int32(1)},
		bson.Elem{Key: "uploadDate", Value: bson.Int32(1)},
	)
	if _, err := b.filesColl.CreateIndex(ctx, options.IndexModel{Keys: filesKeys}); err != nil {
		return err
	}

	chunksKeys := bson.NewDocument(
		bson.Elem{Key: "files_id", Value: bson.Int32(1)},
		bson.Elem{Key: "n", Value: bson.Int32(1)},
	)
	_, err = b.chunksColl.CreateIndex(ctx, options.IndexModel{Keys: chunksKeys, Unique: true})
	return err
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
