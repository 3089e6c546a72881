// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package wiremessage implements the 16-byte message header, the opcodes,
// and the query/reply/get-more/kill-cursors message bodies described in
// §4.3, bit-exact with the server's wire protocol.
package wiremessage

import (
	"encoding/binary"
	"fmt"
)

// OpCode identifies the kind of message a header introduces.
type OpCode int32

// The opcodes this driver sends or receives, per §4.3.
const (
	OpReply       OpCode = 1
	OpUpdate      OpCode = 2001
	OpInsert      OpCode = 2002
	OpQuery       OpCode = 2004
	OpGetMore     OpCode = 2005
	OpKillCursors OpCode = 2007
)

func (c OpCode) String() string {
	switch c {
	case OpReply:
		return "reply"
	case OpUpdate:
		return "update"
	case OpInsert:
		return "insert"
	case OpQuery:
		return "query"
	case OpGetMore:
		return "get_more"
	case OpKillCursors:
		return "kill_cursors"
	default:
		return fmt.Sprintf("opcode(%d)", int32(c))
	}
}

// headerLen is the fixed size of the message header.
const headerLen = 16

// Header is the 16-byte, little-endian header prefixing every message.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

// AppendHeader appends the header to dst.
func (h Header) AppendHeader(dst []byte) []byte {
	dst = appendInt32(dst, h.MessageLength)
	dst = appendInt32(dst, h.RequestID)
	dst = appendInt32(dst, h.ResponseTo)
	dst = appendInt32(dst, int32(h.OpCode))
	return dst
}

// ReadHeader reads a Header from src starting at pos.
func ReadHeader(src []byte, pos int32) (Header, error) {
	if len(src) < int(pos)+headerLen {
		return Header{}, fmt.Errorf("wiremessage: buffer too small for header")
	}
	return Header{
		MessageLength: readInt32(src, pos),
		RequestID:     readInt32(src, pos+4),
		ResponseTo:    readInt32(src, pos+8),
		OpCode:        OpCode(readInt32(src, pos+12)),
	}, nil
}

func appendInt32(dst []byte, v int32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	return append(dst, tmp[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(dst, tmp[:]...)
}

func appendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0x00)
}

func readInt32(b []byte, pos int32) int32 {
	return int32(binary.LittleEndian.Uint32(b[pos : pos+4]))
}

func readInt64(b []byte, pos int32) int64 {
	return int64(binary.LittleEndian.Uint64(b[pos : pos+8]))
}
