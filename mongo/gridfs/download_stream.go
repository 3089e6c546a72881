// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package gridfs

import (
	"context"
	"errors"
	"io"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/mongo"
)

// ErrWrongIndex is returned when a chunk document's "n" does not match the
// expected sequential index.
var ErrWrongIndex = errors.New("gridfs: chunk index out of sequence")

var errNoMoreChunks = errors.New("gridfs: no more chunks")

// DownloadStream reads a file's chunks in order, per §4.11: "Reading opens
// a files document, then streams chunks ordered by n." Grounded on
// download_stream.go, adapted to read through this driver's mongo.Cursor.
type DownloadStream struct {
	cursor        *mongo.Cursor
	chunkSize     int32
	fileLen       int64
	expectedChunk int32

	buf      []byte
	bufStart int

	done   bool
	closed bool
}

func newDownloadStream(cursor *mongo.Cursor, chunkSize int32, fileLen int64) *DownloadStream {
	return &DownloadStream{
		cursor:    cursor,
		chunkSize: chunkSize,
		fileLen:   fileLen,
		done:      cursor == nil,
	}
}

// Close ends the underlying cursor.
func (ds *DownloadStream) Close(ctx context.Context) error {
	if ds.closed {
		return ErrStreamClosed
	}
	ds.closed = true
	if ds.cursor != nil {
		return ds.cursor.Close(ctx)
	}
	return nil
}

// Read satisfies io.Reader, fetching further chunks from the server as
// needed. Intermediate chunk fetches use context.Background(); for
// request-scoped deadlines use ReadContext directly.
func (ds *DownloadStream) Read(p []byte) (int, error) {
	return ds.ReadContext(context.Background(), p)
}

// ReadContext is Read with an explicit context for the chunk fetch it may
// perform.
func (ds *DownloadStream) ReadContext(ctx context.Context, p []byte) (int, error) {
	if ds.closed {
		return 0, ErrStreamClosed
	}
	if ds.done && ds.bufStart >= len(ds.buf) {
		return 0, io.EOF
	}

	if ds.bufStart >= len(ds.buf) {
		if err := ds.fillBuffer(ctx); err != nil {
			if errors.Is(err, errNoMoreChunks) {
				return 0, io.EOF
			}
			return 0, err
		}
	}

	n := copy(p, ds.buf[ds.bufStart:])
	ds.bufStart += n
	return n, nil
}

func (ds *DownloadStream) fillBuffer(ctx context.Context) error {
	doc, ok, err := ds.cursor.Next(ctx)
	if err != nil {
		return err
	}
	if !ok {
		ds.done = true
		return errNoMoreChunks
	}

	nV, ok := doc.Lookup("n")
	if !ok {
		return ErrWrongIndex
	}
	if asInt32(nV) != ds.expectedChunk {
		return ErrWrongIndex
	}
	ds.expectedChunk++

	dataV, ok := doc.Lookup("data")
	if !ok || dataV.Kind() != bson.KindBinary {
		return ErrWrongIndex
	}
	_, data := dataV.AsBinary()

	ds.buf = data
	ds.bufStart = 0
	return nil
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
