// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"testing"

	"github.com/coredb-io/coredb-go-driver/bson"
)

func TestWithIDGeneratesWhenAbsent(t *testing.T) {
	doc := bson.NewDocument(bson.Elem{Key: "x", Value: bson.Int32(42)})

	out, id := withID(doc)

	if id.Kind() != bson.KindObjectID {
		t.Fatalf("expected generated _id to be an ObjectID, got kind %v", id.Kind())
	}
	els := out.Elements()
	if len(els) != 2 || els[0].Key != "_id" {
		t.Fatalf("expected _id prepended as first element, got %+v", els)
	}
	if els[1].Key != "x" {
		t.Fatalf("expected original field preserved, got %+v", els[1])
	}
}

func TestWithIDPreservesExisting(t *testing.T) {
	doc := bson.NewDocument(
		bson.Elem{Key: "_id", Value: bson.Int32(7)},
		bson.Elem{Key: "x", Value: bson.Int32(42)},
	)

	out, id := withID(doc)

	if out != doc {
		t.Fatalf("expected the original document to be returned unchanged when _id is present")
	}
	if id.Kind() != bson.KindInt32 || id.AsInt32() != 7 {
		t.Fatalf("expected the existing _id value to be returned, got %+v", id)
	}
}

func TestDefaultIndexName(t *testing.T) {
	cases := []struct {
		keys *bson.Document
		want string
	}{
		{bson.NewDocument(bson.Elem{Key: "a", Value: bson.Int32(1)}), "a_1"},
		{bson.NewDocument(bson.Elem{Key: "a", Value: bson.Int32(-1)}), "a_-1"},
		{
			bson.NewDocument(
				bson.Elem{Key: "a", Value: bson.Int32(1)},
				bson.Elem{Key: "b", Value: bson.Int32(-1)},
			),
			"a_1_b_-1",
		},
	}
	for _, c := range cases {
		if got := defaultIndexName(c.keys); got != c.want {
			t.Errorf("defaultIndexName(%+v) = %q, want %q", c.keys, got, c.want)
		}
	}
}

func TestAsInt64Conversions(t *testing.T) {
	cases := []struct {
		v    bson.Value
		want int64
	}{
		{bson.Int32(5), 5},
		{bson.Int64(9000000000), 9000000000},
		{bson.Double(3.9), 3},
	}
	for _, c := range cases {
		if got := asInt64(c.v); got != c.want {
			t.Errorf("asInt64(%+v) = %d, want %d", c.v, got, c.want)
		}
	}
}
