// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package gridfs

import (
	"crypto/md5"
	"encoding/hex"
	"testing"
)

func TestHexSumMatchesStdlibHex(t *testing.T) {
	h := md5.New()
	h.Write([]byte("the quick brown fox"))

	got := hexSum(h)
	want := hex.EncodeToString(h.Sum(nil))

	if got != want {
		t.Fatalf("hexSum() = %q, want %q", got, want)
	}
}
