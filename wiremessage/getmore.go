// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

// GetMore is the OP_GET_MORE message body: requests the next batch from
// an open server-side cursor, per §4.8.
type GetMore struct {
	Header             Header
	FullCollectionName string
	NumberToReturn     int32
	CursorID           int64
}

// AppendWireMessage serializes g, including its header, onto dst.
func (g GetMore) AppendWireMessage(dst []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, headerLen)...)
	dst = appendInt32(dst, 0) // reserved
	dst = appendCString(dst, g.FullCollectionName)
	dst = appendInt32(dst, g.NumberToReturn)
	dst = appendInt64(dst, g.CursorID)

	h := g.Header
	h.MessageLength = int32(len(dst) - start)
	h.OpCode = OpGetMore
	copy(dst[start:start+headerLen], h.AppendHeader(nil))
	return dst, nil
}
