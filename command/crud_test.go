// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package command

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/writeconcern"
)

func TestInsertCommandShape(t *testing.T) {
	docs := []*bson.Document{
		bson.NewDocument(bson.Elem{Key: "_id", Value: bson.Int32(1)}),
	}
	cmd := Insert("widgets", docs, true, writeconcern.New())

	if v, ok := cmd.Lookup("insert"); !ok || v.AsString() != "widgets" {
		t.Fatalf("insert field wrong: %+v", v)
	}
	docsVal, ok := cmd.Lookup("documents")
	if !ok || docsVal.Kind() != bson.KindArray || docsVal.AsDocument().Len() != 1 {
		t.Fatalf("documents field wrong: %+v", docsVal)
	}
	if v, ok := cmd.Lookup("writeConcern"); !ok || v.Kind() != bson.KindDocument {
		t.Fatalf("expected a writeConcern sub-document, got %+v", v)
	}
}

func TestParseWriteResultCollectsErrors(t *testing.T) {
	reply := bson.NewDocument(
		bson.Elem{Key: "n", Value: bson.Int32(3)},
		bson.Elem{Key: "writeErrors", Value: bson.Array(bson.ArrayFromValues(
			bson.DocumentValue(bson.NewDocument(
				bson.Elem{Key: "index", Value: bson.Int32(1)},
				bson.Elem{Key: "code", Value: bson.Int32(11000)},
				bson.Elem{Key: "errmsg", Value: bson.String("duplicate key")},
			)),
		))},
	)
	r := ParseWriteResult(reply)
	want := []WriteError{{Index: 1, Code: 11000, Message: "duplicate key"}}
	if r.N != 3 {
		t.Fatalf("expected N=3, got %d", r.N)
	}
	if diff := cmp.Diff(want, r.WriteErrors); diff != "" {
		t.Fatalf("unexpected write errors (-want +got):\n%s", diff)
	}
}

func TestSplitInsertsRespectsMaxCount(t *testing.T) {
	docs := make([]*bson.Document, 5)
	for i := range docs {
		docs[i] = bson.NewDocument(bson.Elem{Key: "i", Value: bson.Int32(int32(i))})
	}
	batches, err := SplitInserts(docs, 2, DefaultMaxMessageSizeBytes)
	if err != nil {
		t.Fatalf("SplitInserts: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches of at most 2, got %d: %+v", len(batches), batches)
	}
	total := 0
	for _, b := range batches {
		if len(b) > 2 {
			t.Fatalf("batch exceeds max count: %+v", b)
		}
		total += len(b)
	}
	if total != 5 {
		t.Fatalf("expected all 5 docs accounted for, got %d", total)
	}
}

func TestSplitInsertsSinglesOversizedDoc(t *testing.T) {
	big := bson.NewDocument(bson.Elem{Key: "data", Value: bson.String(string(make([]byte, 100)))})
	small := bson.NewDocument(bson.Elem{Key: "i", Value: bson.Int32(1)})
	batches, err := SplitInserts([]*bson.Document{big, small}, 1000, 50)
	if err != nil {
		t.Fatalf("SplitInserts: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected the oversized doc split into its own batch, got %+v", batches)
	}
}
