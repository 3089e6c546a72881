// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import "github.com/coredb-io/coredb-go-driver/bson"

// InsertOneResult is the typed result of Collection.InsertOne, per §4.9.
type InsertOneResult struct {
	InsertedID bson.Value
}

// InsertManyResult is the typed result of Collection.InsertMany.
type InsertManyResult struct {
	InsertedIDs []bson.Value
}

// UpdateResult is the typed result of UpdateOne/UpdateMany/ReplaceOne.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedID    bson.Value
	UpsertedCount int64
}

// DeleteResult is the typed result of DeleteOne/DeleteMany.
type DeleteResult struct {
	DeletedCount int64
}
