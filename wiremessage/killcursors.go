// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

// KillCursors is the OP_KILL_CURSORS message body, sent on explicit
// Cursor.Close or never otherwise, per §9's resolved open question.
type KillCursors struct {
	Header            Header
	NumberOfCursorIDs int32
	CursorIDs         []int64
}

// AppendWireMessage serializes k, including its header, onto dst.
func (k KillCursors) AppendWireMessage(dst []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, headerLen)...)
	dst = appendInt32(dst, 0) // reserved
	dst = appendInt32(dst, k.NumberOfCursorIDs)
	for _, id := range k.CursorIDs {
		dst = appendInt64(dst, id)
	}

	h := k.Header
	h.MessageLength = int32(len(dst) - start)
	h.OpCode = OpKillCursors
	copy(dst[start:start+headerLen], h.AppendHeader(nil))
	return dst, nil
}
