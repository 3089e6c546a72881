// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package gridfs

import (
	"context"
	"crypto/md5"
	"hash"
	"time"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/mongo"
)

// UploadStream buffers writes into fixed-size chunks and inserts each full
// chunk into the bucket's chunks collection as it fills, per §4.11.
type UploadStream struct {
	chunksColl *mongo.Collection
	filesColl  *mongo.Collection

	fileID    bson.Value
	filename  string
	metadata  *bson.Document
	chunkSize int32

	buf    []byte
	n      int32 // next chunk index
	length int64
	md5    hash.Hash

	closed  bool
	aborted bool
}

func newUploadStream(chunksColl, filesColl *mongo.Collection, fileID bson.Value, filename string, chunkSize int32, metadata *bson.Document) *UploadStream {
	return &UploadStream{
		chunksColl: chunksColl,
		filesColl:  filesColl,
		fileID:     fileID,
		filename:   filename,
		metadata:   metadata,
		chunkSize:  chunkSize,
		buf:        make([]byte, 0, chunkSize),
		md5:        md5.New(),
	}
}

// FileID returns the ID this stream will write its files document under.
func (us *UploadStream) FileID() bson.Value { return us.fileID }

// Write buffers p, flushing full chunks to the server as they accumulate.
// It satisfies io.Writer, but every flush needs a context; callers driving
// io.Copy get context.Background() for those intermediate flushes and
// should prefer WriteContext for request-scoped deadlines.
func (us *UploadStream) Write(p []byte) (int, error) {
	return us.WriteContext(context.Background(), p)
}

// WriteContext is Write with an explicit context for the chunk inserts it
// may perform.
func (us *UploadStream) WriteContext(ctx context.Context, p []byte) (int, error) {
	if us.closed {
		return 0, ErrStreamClosed
	}

	total := len(p)
	for len(p) > 0 {
		room := int(us.chunkSize) - len(us.buf)
		take := room
		if take > len(p) {
			take = len(p)
		}
		us.buf = append(us.buf, p[:take]...)
		p = p[take:]

		if len(us.buf) == int(us.chunkSize) {
			if err := us.flushChunk(ctx); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

func (us *UploadStream) flushChunk(ctx context.Context) error {
	if len(us.buf) == 0 {
		return nil
	}
	us.md5.Write(us.buf)
	us.length += int64(len(us.buf))

	doc := bson.NewDocument(
		bson.Elem{Key: "_id", Value: bson.ObjectIDValue(bson.NewObjectID())},
		bson.Elem{Key: "files_id", Value: us.fileID},
		bson.Elem{Key: "n", Value: bson.Int32(us.n)},
		bson.Elem{Key: "data", Value: bson.Binary(0x00, append([]byte(nil), us.buf...))},
	)
	us.n++
	us.buf = us.buf[:0]

	_, err := us.chunksColl.InsertOne(ctx, doc)
	return err
}

// Abort discards the stream, deleting any chunks already written.
func (us *UploadStream) Abort(ctx context.Context) error {
	if us.closed {
		return ErrStreamClosed
	}
	us.closed = true
	us.aborted = true
	_, err := us.chunksColl.DeleteMany(ctx, bson.NewDocument(bson.Elem{Key: "files_id", Value: us.fileID}))
	return err
}

// Close flushes any buffered partial chunk and inserts the files document,
// per §4.11: "closing flushes the final partial chunk, computes MD5 of the
// concatenated data, and inserts the files document."
func (us *UploadStream) Close(ctx context.Context) error {
	if us.closed {
		return ErrStreamClosed
	}
	us.closed = true

	if err := us.flushChunk(ctx); err != nil {
		return err
	}

	filesDoc := bson.NewDocument(
		bson.Elem{Key: "_id", Value: us.fileID},
		bson.Elem{Key: "length", Value: bson.Int64(us.length)},
		bson.Elem{Key: "chunkSize", Value: bson.Int32(us.chunkSize)},
		bson.Elem{Key: "uploadDate", Value: bson.DateTime(time.Now().UnixMilli())},
		bson.Elem{Key: "filename", Value: bson.String(us.filename)},
		bson.Elem{Key: "md5", Value: bson.String(hexSum(us.md5))},
	)
	if us.metadata != nil {
		filesDoc.Append("metadata", bson.DocumentValue(us.metadata))
	}

	_, err := us.filesColl.InsertOne(ctx, filesDoc)
	return err
}

func hexSum(h hash.Hash) string {
	const hextable = "0123456789abcdef"
	sum := h.Sum(nil)
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
