// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"encoding/binary"
	"unicode/utf8"
)

// Decode parses a Document from the start of b, returning the document and
// the number of bytes consumed. It fails with CorruptDocument per the
// conditions listed in §4.1.
func Decode(b []byte) (*Document, int, error) {
	return decodeDocument(b, 0)
}

func decodeDocument(b []byte, depth int) (*Document, int, error) {
	if depth > maxRecursionDepth {
		return nil, 0, corrupt("recursion depth exceeds %d", maxRecursionDepth)
	}
	if len(b) < 5 {
		return nil, 0, corrupt("buffer too small for document header")
	}
	length := int(int32(binary.LittleEndian.Uint32(b[0:4])))
	if length < 5 || length > len(b) {
		return nil, 0, corrupt("length prefix %d exceeds available %d bytes", length, len(b))
	}
	if b[length-1] != 0x00 {
		return nil, 0, corrupt("missing terminal NUL")
	}

	d := &Document{}
	pos := 4
	for pos < length-1 {
		tag := Kind(b[pos])
		pos++

		key, n, err := readCString(b[:length-1], pos)
		if err != nil {
			return nil, 0, err
		}
		pos = n

		v, consumed, err := decodeValue(tag, b[:length], pos, depth)
		if err != nil {
			return nil, 0, err
		}
		pos = consumed

		d.elems = append(d.elems, Elem{Key: key, Value: v})
	}
	if pos != length-1 {
		return nil, 0, corrupt("element overruns document length")
	}
	return d, length, nil
}

// decodeArray decodes an array body exactly as decodeDocument does; the
// caller wraps the result as an array Value. Gaps in the numeric keys are
// accepted, per §4.1.
func decodeArray(b []byte, depth int) (*Document, int, error) {
	return decodeDocument(b, depth)
}

func decodeValue(tag Kind, b []byte, pos, depth int) (Value, int, error) {
	switch tag {
	case KindDouble:
		u, n, err := readUint64(b, pos)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{kind: KindDouble, i64: int64(u)}, n, nil
	case KindString:
		s, n, err := readString(b, pos)
		if err != nil {
			return Value{}, 0, err
		}
		return String(s), n, nil
	case KindDocument:
		doc, n, err := decodeDocument(b[pos:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		return DocumentValue(doc), pos + n, nil
	case KindArray:
		doc, n, err := decodeArray(b[pos:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		return Array(doc), pos + n, nil
	case KindBinary:
		if pos+5 > len(b) {
			return Value{}, 0, corrupt("binary header truncated")
		}
		size := int(int32(binary.LittleEndian.Uint32(b[pos : pos+4])))
		subtype := b[pos+4]
		start := pos + 5
		if size < 0 || start+size > len(b) {
			return Value{}, 0, corrupt("binary length exceeds buffer")
		}
		data := make([]byte, size)
		copy(data, b[start:start+size])
		return Binary(subtype, data), start + size, nil
	case KindObjectID:
		if pos+12 > len(b) {
			return Value{}, 0, corrupt("objectId truncated")
		}
		var oid ObjectID
		copy(oid[:], b[pos:pos+12])
		return ObjectIDValue(oid), pos + 12, nil
	case KindBoolean:
		if pos+1 > len(b) {
			return Value{}, 0, corrupt("boolean truncated")
		}
		if b[pos] != 0 && b[pos] != 1 {
			return Value{}, 0, corrupt("invalid boolean byte %d", b[pos])
		}
		return Boolean(b[pos] == 1), pos + 1, nil
	case KindDateTime:
		u, n, err := readUint64(b, pos)
		if err != nil {
			return Value{}, 0, err
		}
		return DateTime(int64(u)), n, nil
	case KindNull:
		return Null(), pos, nil
	case KindRegex:
		pattern, n, err := readCString(b, pos)
		if err != nil {
			return Value{}, 0, err
		}
		flags, n2, err := readCString(b, n)
		if err != nil {
			return Value{}, 0, err
		}
		return Regex(pattern, flags), n2, nil
	case KindJavaScript:
		s, n, err := readString(b, pos)
		if err != nil {
			return Value{}, 0, err
		}
		return JavaScript(s), n, nil
	case KindJavaScriptWithScope:
		if pos+4 > len(b) {
			return Value{}, 0, corrupt("javascriptWithScope truncated")
		}
		total := int(int32(binary.LittleEndian.Uint32(b[pos : pos+4])))
		if total < 0 || pos+total > len(b) {
			return Value{}, 0, corrupt("javascriptWithScope length exceeds buffer")
		}
		end := pos + total
		code, n, err := readString(b, pos+4)
		if err != nil {
			return Value{}, 0, err
		}
		scope, n2, err := decodeDocument(b[n:end], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		if n+n2 != end {
			return Value{}, 0, corrupt("javascriptWithScope scope does not match length")
		}
		return JavaScriptWithScope(code, scope), end, nil
	case KindInt32:
		if pos+4 > len(b) {
			return Value{}, 0, corrupt("int32 truncated")
		}
		return Int32(int32(binary.LittleEndian.Uint32(b[pos : pos+4]))), pos + 4, nil
	case KindTimestamp:
		u, n, err := readUint64(b, pos)
		if err != nil {
			return Value{}, 0, err
		}
		return Timestamp(uint32(u>>32), uint32(u)), n, nil
	case KindInt64:
		u, n, err := readUint64(b, pos)
		if err != nil {
			return Value{}, 0, err
		}
		return Int64(int64(u)), n, nil
	case KindMinKey:
		return MinKey(), pos, nil
	case KindMaxKey:
		return MaxKey(), pos, nil
	default:
		return Value{}, 0, corrupt("unknown tag byte 0x%02x", byte(tag))
	}
}

func readUint64(b []byte, pos int) (uint64, int, error) {
	if pos+8 > len(b) {
		return 0, 0, corrupt("8-byte value truncated")
	}
	return binary.LittleEndian.Uint64(b[pos : pos+8]), pos + 8, nil
}

func readCString(b []byte, pos int) (string, int, error) {
	start := pos
	for pos < len(b) {
		if b[pos] == 0 {
			return string(b[start:pos]), pos + 1, nil
		}
		pos++
	}
	return "", 0, corrupt("unterminated cstring")
}

func readString(b []byte, pos int) (string, int, error) {
	if pos+4 > len(b) {
		return "", 0, corrupt("string header truncated")
	}
	size := int(int32(binary.LittleEndian.Uint32(b[pos : pos+4])))
	start := pos + 4
	if size < 1 || start+size > len(b) {
		return "", 0, corrupt("string length mismatch")
	}
	if b[start+size-1] != 0 {
		return "", 0, corrupt("string missing terminal NUL")
	}
	s := string(b[start : start+size-1])
	if !utf8.ValidString(s) {
		return "", 0, corrupt("string is not valid UTF-8")
	}
	return s, start + size, nil
}
