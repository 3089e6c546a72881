// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/command"
	"github.com/coredb-io/coredb-go-driver/mongo/options"
	"github.com/coredb-io/coredb-go-driver/readpref"
	"github.com/coredb-io/coredb-go-driver/topology"
	"github.com/coredb-io/coredb-go-driver/writeconcern"
)

// Database is a handle to a named database on a Client, per §4.9.
type Database struct {
	client         *Client
	name           string
	readPreference *readpref.ReadPreference
	writeConcern   *writeconcern.WriteConcern
}

// Client returns the Database's originating Client.
func (db *Database) Client() *Client { return db.client }

// Name returns the database's name.
func (db *Database) Name() string { return db.name }

// Collection returns a handle to the named collection within db,
// inheriting db's read preference and write concern unless opts
// overrides them.
func (db *Database) Collection(name string, opts ...*options.CollectionOptions) *Collection {
	rp, wc := db.readPreference, db.writeConcern
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadPreference != nil {
			rp = o.ReadPreference
		}
		if o.WriteConcern != nil {
			wc = o.WriteConcern
		}
	}
	return &Collection{db: db, name: name, readPreference: rp, writeConcern: wc}
}

// RunCommand is the generic escape hatch for commands not otherwise
// modeled: it sends cmd against db.$cmd and returns the raw reply. Of the
// other Database/Collection methods only Drop goes through it; the rest
// call the client's command path directly.
func (db *Database) RunCommand(ctx context.Context, cmd *bson.Document) (*bson.Document, error) {
	return db.client.runCommand(ctx, topology.ReadOperation, db.readPreference, db.name, cmd)
}

// ListCollections returns a Cursor over the database's collections, per
// SPEC_FULL.md's §4.9 supplement.
func (db *Database) ListCollections(ctx context.Context, opts ...*options.ListCollectionsOptions) (*Cursor, error) {
	var filter *bson.Document
	for _, o := range opts {
		if o != nil && o.Filter != nil {
			filter = o.Filter
		}
	}
	cmd := command.ListCollections(filter)
	return db.client.runCursorCommand(ctx, topology.ReadOperation, db.readPreference, db.name, cmd, "", 0, false, false)
}

// Drop drops the database.
func (db *Database) Drop(ctx context.Context) error {
	_, err := db.RunCommand(ctx, bson.NewDocument(bson.Elem{Key: "dropDatabase", Value: bson.Int32(1)}))
	return err
}
