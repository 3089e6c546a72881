// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package gridfs

import "github.com/coredb-io/coredb-go-driver/bson"

// BucketOptions configures NewBucket.
type BucketOptions struct {
	Name           string
	ChunkSizeBytes int32
}

// Bucket returns an empty BucketOptions ready for Set calls.
func Bucket() *BucketOptions { return &BucketOptions{} }

// SetName overrides the bucket's collection prefix, "fs" by default.
func (o *BucketOptions) SetName(name string) *BucketOptions { o.Name = name; return o }

// SetChunkSizeBytes overrides the per-chunk size, 255 KiB by default.
func (o *BucketOptions) SetChunkSizeBytes(n int32) *BucketOptions { o.ChunkSizeBytes = n; return o }

// UploadOptions configures a single OpenUploadStream(WithID) call.
type UploadOptions struct {
	ChunkSizeBytes int32
	Metadata       *bson.Document
}

// Upload returns an empty UploadOptions ready for Set calls.
func Upload() *UploadOptions { return &UploadOptions{} }

// SetChunkSizeBytes overrides the bucket's chunk size for this one upload.
func (o *UploadOptions) SetChunkSizeBytes(n int32) *UploadOptions { o.ChunkSizeBytes = n; return o }

// SetMetadata attaches a user metadata document to the files entry.
func (o *UploadOptions) SetMetadata(d *bson.Document) *UploadOptions { o.Metadata = d; return o }
