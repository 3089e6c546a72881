// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bson implements the binary document codec described by the wire
// format: an ordered mapping from string keys to a closed sum of typed
// values, each carrying a single-byte tag on the wire.
package bson

// Kind identifies the type of a Value. The numeric values are the wire
// tag bytes themselves, so a Kind can be written directly to a buffer.
type Kind byte

// The full, closed set of value kinds the wire format supports.
const (
	KindDouble             Kind = 0x01
	KindString             Kind = 0x02
	KindDocument           Kind = 0x03
	KindArray              Kind = 0x04
	KindBinary             Kind = 0x05
	KindObjectID           Kind = 0x07
	KindBoolean            Kind = 0x08
	KindDateTime           Kind = 0x09
	KindNull               Kind = 0x0A
	KindRegex              Kind = 0x0B
	KindJavaScript         Kind = 0x0D
	KindJavaScriptWithScope Kind = 0x0F
	KindInt32              Kind = 0x10
	KindTimestamp          Kind = 0x11
	KindInt64              Kind = 0x12
	KindMinKey             Kind = 0xFF
	KindMaxKey             Kind = 0x7F
)

// String returns a human readable name for k, used in error messages.
func (k Kind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindDocument:
		return "document"
	case KindArray:
		return "array"
	case KindBinary:
		return "binary"
	case KindObjectID:
		return "objectId"
	case KindBoolean:
		return "bool"
	case KindDateTime:
		return "datetime"
	case KindNull:
		return "null"
	case KindRegex:
		return "regex"
	case KindJavaScript:
		return "javascript"
	case KindJavaScriptWithScope:
		return "javascriptWithScope"
	case KindInt32:
		return "int32"
	case KindTimestamp:
		return "timestamp"
	case KindInt64:
		return "int64"
	case KindMinKey:
		return "minKey"
	case KindMaxKey:
		return "maxKey"
	default:
		return "invalid"
	}
}
