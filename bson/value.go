// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"fmt"
	"math"
)

func floatBits(f float64) uint64    { return math.Float64bits(f) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// Value is the tagged union of every value a Document can hold. Per the
// design note in §9 this is a flat struct switched on Kind rather than an
// interface hierarchy: faster and simpler than per-kind types.
type Value struct {
	kind Kind

	i64     int64 // int64, utc-datetime (ms since epoch), timestamp (packed), double (bits)
	i32     int32 // int32
	boolean bool
	str     string // string, javascript, regex pattern
	str2    string // regex flags
	doc     *Document
	bin     []byte
	subtype byte
	oid     ObjectID
}

// Kind reports the value's wire kind.
func (v Value) Kind() Kind { return v.kind }

// Double constructs a double value.
func Double(f float64) Value { return Value{kind: KindDouble, i64: int64(floatBits(f))} }

// AsDouble returns the float64 held by v. Panics if Kind() != KindDouble.
func (v Value) AsDouble() float64 {
	v.mustBe(KindDouble)
	return floatFromBits(uint64(v.i64))
}

// String constructs a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// AsString returns the string held by v. Panics if Kind() != KindString.
func (v Value) AsString() string {
	v.mustBe(KindString)
	return v.str
}

// DocumentValue constructs a document value (a nested, ordered document).
func DocumentValue(d *Document) Value { return Value{kind: KindDocument, doc: d} }

// Array constructs an array value: a Document whose keys are "0","1",...
func Array(d *Document) Value { return Value{kind: KindArray, doc: d} }

// AsDocument returns the nested Document for a document or array value.
func (v Value) AsDocument() *Document {
	if v.kind != KindDocument && v.kind != KindArray {
		panic(fmt.Sprintf("value is kind %s, not document or array", v.kind))
	}
	return v.doc
}

// Binary constructs a binary value with the given subtype byte.
func Binary(subtype byte, data []byte) Value {
	return Value{kind: KindBinary, subtype: subtype, bin: data}
}

// AsBinary returns the subtype and raw bytes of a binary value.
func (v Value) AsBinary() (byte, []byte) {
	v.mustBe(KindBinary)
	return v.subtype, v.bin
}

// ObjectIDValue constructs an objectId value.
func ObjectIDValue(id ObjectID) Value { return Value{kind: KindObjectID, oid: id} }

// AsObjectID returns the ObjectID held by v.
func (v Value) AsObjectID() ObjectID {
	v.mustBe(KindObjectID)
	return v.oid
}

// Boolean constructs a boolean value.
func Boolean(b bool) Value { return Value{kind: KindBoolean, boolean: b} }

// AsBoolean returns the bool held by v.
func (v Value) AsBoolean() bool {
	v.mustBe(KindBoolean)
	return v.boolean
}

// DateTime constructs a utc-datetime value from milliseconds since the epoch.
func DateTime(ms int64) Value { return Value{kind: KindDateTime, i64: ms} }

// AsDateTime returns the millisecond epoch value held by v.
func (v Value) AsDateTime() int64 {
	v.mustBe(KindDateTime)
	return v.i64
}

// Null constructs a null value.
func Null() Value { return Value{kind: KindNull} }

// Regex constructs a regex value from a pattern and flags string.
func Regex(pattern, flags string) Value {
	return Value{kind: KindRegex, str: pattern, str2: flags}
}

// AsRegex returns the pattern and flags of a regex value.
func (v Value) AsRegex() (pattern, flags string) {
	v.mustBe(KindRegex)
	return v.str, v.str2
}

// JavaScript constructs a javascript value (code with no scope).
func JavaScript(code string) Value { return Value{kind: KindJavaScript, str: code} }

// AsJavaScript returns the code string of a javascript value.
func (v Value) AsJavaScript() string {
	v.mustBe(KindJavaScript)
	return v.str
}

// JavaScriptWithScope constructs a javascript-with-scope value.
func JavaScriptWithScope(code string, scope *Document) Value {
	return Value{kind: KindJavaScriptWithScope, str: code, doc: scope}
}

// AsJavaScriptWithScope returns the code and scope document.
func (v Value) AsJavaScriptWithScope() (string, *Document) {
	v.mustBe(KindJavaScriptWithScope)
	return v.str, v.doc
}

// Int32 constructs an int32 value.
func Int32(i int32) Value { return Value{kind: KindInt32, i32: i} }

// AsInt32 returns the int32 held by v.
func (v Value) AsInt32() int32 {
	v.mustBe(KindInt32)
	return v.i32
}

// Timestamp constructs an opaque 64-bit (seconds, ordinal) timestamp value.
func Timestamp(seconds, ordinal uint32) Value {
	return Value{kind: KindTimestamp, i64: int64(uint64(seconds)<<32 | uint64(ordinal))}
}

// AsTimestamp returns the (seconds, ordinal) pair packed into v.
func (v Value) AsTimestamp() (seconds, ordinal uint32) {
	v.mustBe(KindTimestamp)
	u := uint64(v.i64)
	return uint32(u >> 32), uint32(u)
}

// Int64 constructs an int64 value.
func Int64(i int64) Value { return Value{kind: KindInt64, i64: i} }

// AsInt64 returns the int64 held by v.
func (v Value) AsInt64() int64 {
	v.mustBe(KindInt64)
	return v.i64
}

// MinKey constructs the min-key sentinel.
func MinKey() Value { return Value{kind: KindMinKey} }

// MaxKey constructs the max-key sentinel.
func MaxKey() Value { return Value{kind: KindMaxKey} }

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value is kind %s, not %s", v.kind, k))
	}
}

// Equal reports whether v and other represent the same value. Numeric
// kinds are compared without coercion: an int32 10 is not equal to an
// int64 10, per §4.1.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindDouble:
		return v.i64 == other.i64
	case KindString, KindJavaScript:
		return v.str == other.str
	case KindDocument, KindArray:
		return v.doc.Equal(other.doc)
	case KindBinary:
		if v.subtype != other.subtype || len(v.bin) != len(other.bin) {
			return false
		}
		for i := range v.bin {
			if v.bin[i] != other.bin[i] {
				return false
			}
		}
		return true
	case KindObjectID:
		return v.oid == other.oid
	case KindBoolean:
		return v.boolean == other.boolean
	case KindDateTime, KindInt64, KindTimestamp:
		return v.i64 == other.i64
	case KindNull, KindMinKey, KindMaxKey:
		return true
	case KindRegex:
		return v.str == other.str && v.str2 == other.str2
	case KindJavaScriptWithScope:
		return v.str == other.str && v.doc.Equal(other.doc)
	case KindInt32:
		return v.i32 == other.i32
	default:
		return false
	}
}
