// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "github.com/coredb-io/coredb-go-driver/bson"

// UpdateFlag is a bit in OP_UPDATE's flags field.
type UpdateFlag int32

// Update flag bits.
const (
	UpdateUpsert      UpdateFlag = 1 << 0
	UpdateMultiUpdate UpdateFlag = 1 << 1
)

// Update is the legacy OP_UPDATE message body, per §4.3's opcode table.
// The driver sends every write, acknowledged or unacknowledged (w=0), as
// a command over the $cmd query path and never sends OP_UPDATE.
type Update struct {
	Header             Header
	FullCollectionName string
	Flags              UpdateFlag
	Selector           *bson.Document
	Update             *bson.Document
}

// AppendWireMessage serializes u, including its header, onto dst.
func (u Update) AppendWireMessage(dst []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, headerLen)...)
	dst = appendInt32(dst, 0) // reserved
	dst = appendCString(dst, u.FullCollectionName)
	dst = appendInt32(dst, int32(u.Flags))

	sel, err := bson.Encode(u.Selector)
	if err != nil {
		return nil, err
	}
	dst = append(dst, sel...)

	upd, err := bson.Encode(u.Update)
	if err != nil {
		return nil, err
	}
	dst = append(dst, upd...)

	h := u.Header
	h.MessageLength = int32(len(dst) - start)
	h.OpCode = OpUpdate
	copy(dst[start:start+headerLen], h.AppendHeader(nil))
	return dst, nil
}
