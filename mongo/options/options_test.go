// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import "testing"

func TestOrderedDefaultsTrue(t *testing.T) {
	if !InsertMany().Ordered {
		t.Error("InsertMany() should default Ordered to true, matching the server's own default")
	}
	if !BulkWrite().Ordered {
		t.Error("BulkWrite() should default Ordered to true, matching the server's own default")
	}
	if InsertMany().SetOrdered(false).Ordered {
		t.Error("SetOrdered(false) should clear Ordered")
	}
}

func TestFindOptionsChaining(t *testing.T) {
	fo := Find().SetSkip(10).SetLimit(5).SetBatchSize(101).SetTailable(true).SetAwaitData(true)

	if fo.Skip != 10 || fo.Limit != 5 || fo.BatchSize != 101 {
		t.Fatalf("unexpected FindOptions: %+v", fo)
	}
	if !fo.Tailable || !fo.AwaitData {
		t.Fatalf("expected Tailable and AwaitData set, got %+v", fo)
	}
}

func TestReturnDocumentConstants(t *testing.T) {
	if Before == After {
		t.Fatal("Before and After must be distinct ReturnDocument values")
	}
	fo := FindOneAndUpdate().SetReturnDocument(After)
	if fo.ReturnDocument != After {
		t.Fatalf("expected After, got %v", fo.ReturnDocument)
	}
}
