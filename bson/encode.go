// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"
)

// Encode serializes d into its wire-format bytes. The first 4 bytes of the
// result are the little-endian total length and the last byte is NUL, per
// §4.1.
func Encode(d *Document) ([]byte, error) {
	buf := make([]byte, 4, 64)
	var err error
	buf, err = appendElements(buf, d)
	if err != nil {
		return nil, err
	}
	buf = append(buf, 0x00)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	return buf, nil
}

func appendElements(buf []byte, d *Document) ([]byte, error) {
	for i, e := range d.Elements() {
		if strings.IndexByte(e.Key, 0) != -1 {
			return nil, EncodeError{Reason: "key contains NUL byte: " + e.Key}
		}
		var err error
		buf, err = appendElement(buf, e.Key, e.Value, i)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendElement(buf []byte, key string, v Value, arrayIndex int) ([]byte, error) {
	buf = append(buf, byte(v.Kind()))
	buf = appendCString(buf, key)
	return appendValue(buf, v, arrayIndex)
}

func appendValue(buf []byte, v Value, arrayIndex int) ([]byte, error) {
	switch v.Kind() {
	case KindDouble:
		return appendUint64(buf, floatBits(v.AsDouble())), nil
	case KindString:
		return appendString(buf, v.AsString())
	case KindDocument:
		return appendSubdocument(buf, v.AsDocument())
	case KindArray:
		return appendArray(buf, v.AsDocument())
	case KindBinary:
		subtype, data := v.AsBinary()
		buf = appendUint32(buf, uint32(len(data)))
		buf = append(buf, subtype)
		buf = append(buf, data...)
		return buf, nil
	case KindObjectID:
		oid := v.AsObjectID()
		return append(buf, oid[:]...), nil
	case KindBoolean:
		if v.AsBoolean() {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case KindDateTime:
		return appendUint64(buf, uint64(v.AsDateTime())), nil
	case KindNull:
		return buf, nil
	case KindRegex:
		pattern, flags := v.AsRegex()
		buf = appendCString(buf, pattern)
		buf = appendCString(buf, flags)
		return buf, nil
	case KindJavaScript:
		return appendString(buf, v.AsJavaScript())
	case KindJavaScriptWithScope:
		return appendCodeWithScope(buf, v)
	case KindInt32:
		return appendUint32(buf, uint32(v.AsInt32())), nil
	case KindTimestamp:
		seconds, ordinal := v.AsTimestamp()
		return appendUint64(buf, uint64(seconds)<<32|uint64(ordinal)), nil
	case KindInt64:
		return appendUint64(buf, uint64(v.AsInt64())), nil
	case KindMinKey, KindMaxKey:
		return buf, nil
	default:
		return nil, EncodeError{Reason: "unknown value kind"}
	}
}

func appendCodeWithScope(buf []byte, v Value) ([]byte, error) {
	code, scope := v.AsJavaScriptWithScope()
	lenPos := len(buf)
	buf = appendUint32(buf, 0) // placeholder, patched below
	var err error
	buf, err = appendString(buf, code)
	if err != nil {
		return nil, err
	}
	buf, err = appendSubdocument(buf, scope)
	if err != nil {
		return nil, err
	}
	total := len(buf) - lenPos
	binary.LittleEndian.PutUint32(buf[lenPos:lenPos+4], uint32(total))
	return buf, nil
}

func appendSubdocument(buf []byte, d *Document) ([]byte, error) {
	lenPos := len(buf)
	buf = appendUint32(buf, 0)
	var err error
	buf, err = appendElements(buf, d)
	if err != nil {
		return nil, err
	}
	buf = append(buf, 0x00)
	binary.LittleEndian.PutUint32(buf[lenPos:lenPos+4], uint32(len(buf)-lenPos))
	return buf, nil
}

// appendArray encodes an array-kind document, emitting sequential decimal
// keys "0","1",...,"n-1" regardless of the keys stored in d, per §4.1's
// encode rule.
func appendArray(buf []byte, d *Document) ([]byte, error) {
	lenPos := len(buf)
	buf = appendUint32(buf, 0)
	var err error
	for i, e := range d.Elements() {
		buf = append(buf, byte(e.Value.Kind()))
		buf = appendCString(buf, itoa(i))
		buf, err = appendValue(buf, e.Value, i)
		if err != nil {
			return nil, err
		}
	}
	buf = append(buf, 0x00)
	binary.LittleEndian.PutUint32(buf[lenPos:lenPos+4], uint32(len(buf)-lenPos))
	return buf, nil
}

func appendString(buf []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, EncodeError{Reason: "string is not valid UTF-8"}
	}
	buf = appendUint32(buf, uint32(len(s)+1))
	buf = append(buf, s...)
	buf = append(buf, 0x00)
	return buf, nil
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0x00)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
