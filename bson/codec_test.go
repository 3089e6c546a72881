// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

func roundTrip(t *testing.T, d *Document) *Document {
	t.Helper()
	b, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) < 5 || int32(b[0])|int32(b[1])<<8|int32(b[2])<<16|int32(b[3])<<24 != int32(len(b)) {
		t.Fatalf("length prefix does not equal encoded length")
	}
	if b[len(b)-1] != 0x00 {
		t.Fatalf("missing terminal NUL")
	}
	got, n, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(b) {
		t.Fatalf("consumed %d bytes, want %d", n, len(b))
	}
	return got
}

func TestRoundTripAllKinds(t *testing.T) {
	scope := NewDocument(Elem{"x", Int32(1)})
	d := NewDocument(
		Elem{"dbl", Double(3.25)},
		Elem{"str", String("hello")},
		Elem{"doc", DocumentValue(NewDocument(Elem{"a", Int32(1)}))},
		Elem{"arr", Array(ArrayFromValues(Int32(1), Int32(2), Int32(3)))},
		Elem{"bin", Binary(0x00, []byte{1, 2, 3})},
		Elem{"oid", ObjectIDValue(NewObjectID())},
		Elem{"boolT", Boolean(true)},
		Elem{"boolF", Boolean(false)},
		Elem{"dt", DateTime(1234567890)},
		Elem{"null", Null()},
		Elem{"re", Regex("^a.*z$", "i")},
		Elem{"js", JavaScript("function(){}")},
		Elem{"jsws", JavaScriptWithScope("function(){}", scope)},
		Elem{"i32", Int32(-7)},
		Elem{"ts", Timestamp(100, 2)},
		Elem{"i64", Int64(-9000000000)},
		Elem{"min", MinKey()},
		Elem{"max", MaxKey()},
	)

	got := roundTrip(t, d)
	if !got.Equal(d) {
		t.Fatalf("round-tripped document not equal to original:\nwant: %s\ngot:  %s", spew.Sdump(d), spew.Sdump(got))
	}
	if diff := cmp.Diff(d.Keys(), got.Keys()); diff != "" {
		t.Fatalf("key order changed (-want +got):\n%s", diff)
	}
}

func TestEqualityNoNumericCoercion(t *testing.T) {
	a := NewDocument(Elem{"x", Int32(10)})
	b := NewDocument(Elem{"x", Int64(10)})
	if a.Equal(b) {
		t.Fatalf("int32(10) must not equal int64(10)")
	}
}

func TestDecodeCorruptDocument(t *testing.T) {
	cases := map[string][]byte{
		"truncated length":   {0x10, 0x00, 0x00, 0x00},
		"length too large":   {0xFF, 0x00, 0x00, 0x00, 0x00},
		"missing terminal":   {0x05, 0x00, 0x00, 0x00, 0x01},
		"unknown tag":        append(append([]byte{0x09, 0x00, 0x00, 0x00}, 0xEE, 'x', 0x00, 0x00), 0x00),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(b)
			if err == nil {
				t.Fatalf("expected CorruptDocument error")
			}
			if _, ok := err.(CorruptDocument); !ok {
				t.Fatalf("expected CorruptDocument, got %T: %v", err, err)
			}
		})
	}
}

func TestRecursionDepthLimit(t *testing.T) {
	inner := NewDocument(Elem{"x", Int32(1)})
	for i := 0; i < maxRecursionDepth+5; i++ {
		inner = NewDocument(Elem{"n", DocumentValue(inner)})
	}
	b, err := Encode(inner)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, _, err = Decode(b)
	if err == nil {
		t.Fatalf("expected recursion depth error")
	}
}

func TestKeyRejectsNUL(t *testing.T) {
	d := NewDocument(Elem{"bad\x00key", Int32(1)})
	_, err := Encode(d)
	if err == nil {
		t.Fatalf("expected encode error for NUL in key")
	}
}

func TestArrayEncodesSequentialKeys(t *testing.T) {
	arr := NewDocument(Elem{"9", Int32(1)}, Elem{"2", Int32(2)})
	d := NewDocument(Elem{"a", Array(arr)})
	b, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, _, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	v, ok := got.Lookup("a")
	if !ok {
		t.Fatalf("missing key a")
	}
	if diff := cmp.Diff([]string{"0", "1"}, v.AsDocument().Keys()); diff != "" {
		t.Fatalf("array keys not renumbered sequentially (-want +got):\n%s", diff)
	}
}

func TestObjectIDDistinctAndMonotonicPrefix(t *testing.T) {
	ids := make([]ObjectID, 0, 100)
	for i := 0; i < 100; i++ {
		ids = append(ids, NewObjectID())
	}
	seen := map[ObjectID]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ObjectID generated: %s", id.Hex())
		}
		seen[id] = true
	}
	for i := 1; i < len(ids); i++ {
		if ids[i][0] < ids[i-1][0] {
			t.Fatalf("ObjectID timestamp byte went backwards")
		}
	}
}
