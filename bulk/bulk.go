// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bulk implements the bulk write engine of §4.10: batching
// adjacent same-kind models, sequential batch execution, and
// ordered/unordered failure handling.
package bulk

import (
	"context"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/command"
	"github.com/coredb-io/coredb-go-driver/writeconcern"
)

// ModelKind identifies which command category a WriteModel belongs to.
type ModelKind int

// The write model kinds a bulk write can mix, per §4.10.
const (
	InsertOneModel ModelKind = iota
	DeleteOneModel
	DeleteManyModel
	ReplaceOneModel
	UpdateOneModel
	UpdateManyModel
)

// WriteModel is one element of a bulk write's input list.
type WriteModel struct {
	Kind     ModelKind
	Document *bson.Document // InsertOneModel
	Filter   *bson.Document // everything but InsertOneModel
	Update   *bson.Document // ReplaceOneModel, UpdateOneModel, UpdateManyModel
	Upsert   bool
}

func (m WriteModel) category() ModelKind {
	switch m.Kind {
	case DeleteOneModel, DeleteManyModel:
		return DeleteOneModel // both delete kinds batch into one delete command
	case ReplaceOneModel, UpdateOneModel, UpdateManyModel:
		return UpdateOneModel // all three update kinds batch into one update command
	default:
		return InsertOneModel
	}
}

// BulkWriteError is one model's index and its write error. Models that
// never ran (an ordered bulk write stops on the first batch failure, per
// §4.10) are listed in BulkWriteException.UnprocessedIndexes instead.
type BulkWriteError struct {
	Index   int
	Code    int32
	Message string
}

// BulkWriteException is returned when one or more models failed.
type BulkWriteException struct {
	WriteErrors       []BulkWriteError
	WriteConcernError *command.WriteConcernError
	UnprocessedIndexes []int
}

func (e *BulkWriteException) Error() string {
	return "bulk: one or more write models failed"
}

// BulkWriteResult is the merged outcome of every executed batch.
type BulkWriteResult struct {
	InsertedCount int64
	MatchedCount  int64
	ModifiedCount int64
	DeletedCount  int64
	UpsertedCount int64
	UpsertedIDs   map[int]bson.Value
}

// CommandRunner sends a single command document to the server and returns
// the reply. Unlike auth.CommandRunner, its RunCommand takes a context.
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd *bson.Document) (*bson.Document, error)
}

// batch is a maximal run of adjacent models sharing the same category.
type batch struct {
	category    ModelKind
	models      []WriteModel
	firstIndex  int
}

// group splits models into maximal adjacent same-category runs, per
// §4.10's "group adjacent models of the same category" rule, further
// capped at maxBatchCount operations per batch.
func group(models []WriteModel, maxBatchCount int) []batch {
	if maxBatchCount <= 0 {
		maxBatchCount = command.DefaultMaxBatchCount
	}
	var batches []batch
	i := 0
	for i < len(models) {
		cat := models[i].category()
		start := i
		j := i
		for j < len(models) && models[j].category() == cat && j-start < maxBatchCount {
			j++
		}
		batches = append(batches, batch{category: cat, models: models[start:j], firstIndex: start})
		i = j
	}
	return batches
}

// Execute runs models against runner using collection, honoring ordered
// semantics: on ordered=true, a batch failure stops execution and the
// remaining models' indexes are reported as unprocessed; on
// ordered=false, execution continues with subsequent batches.
func Execute(ctx context.Context, runner CommandRunner, collection string, models []WriteModel, ordered bool, wc *writeconcern.WriteConcern) (*BulkWriteResult, *BulkWriteException) {
	result := &BulkWriteResult{UpsertedIDs: make(map[int]bson.Value)}
	var exc BulkWriteException

	batches := group(models, command.DefaultMaxBatchCount)
	for bi, b := range batches {
		cmd, err := buildCommand(collection, b, ordered, wc)
		if err != nil {
			exc.WriteErrors = append(exc.WriteErrors, BulkWriteError{Index: b.firstIndex, Message: err.Error()})
			if ordered {
				markUnprocessed(&exc, batches[bi:])
				break
			}
			continue
		}

		reply, err := runner.RunCommand(ctx, cmd)
		if err != nil {
			exc.WriteErrors = append(exc.WriteErrors, BulkWriteError{Index: b.firstIndex, Message: err.Error()})
			if ordered {
				markUnprocessed(&exc, batches[bi:])
				break
			}
			continue
		}

		wr := command.ParseWriteResult(reply)
		mergeInto(result, b, wr)
		for _, we := range wr.WriteErrors {
			exc.WriteErrors = append(exc.WriteErrors, BulkWriteError{
				Index:   b.firstIndex + we.Index,
				Code:    we.Code,
				Message: we.Message,
			})
		}
		if wr.WriteConcernError != nil {
			exc.WriteConcernError = wr.WriteConcernError
		}

		if ordered && len(wr.WriteErrors) > 0 {
			markUnprocessed(&exc, batches[bi+1:])
			break
		}
	}

	if len(exc.WriteErrors) == 0 && exc.WriteConcernError == nil && len(exc.UnprocessedIndexes) == 0 {
		return result, nil
	}
	return result, &exc
}

func markUnprocessed(exc *BulkWriteException, remaining []batch) {
	for _, b := range remaining {
		for i := range b.models {
			exc.UnprocessedIndexes = append(exc.UnprocessedIndexes, b.firstIndex+i)
		}
	}
}

func mergeInto(result *BulkWriteResult, b batch, wr command.WriteResult) {
	switch b.category {
	case InsertOneModel:
		result.InsertedCount += int64(wr.N)
	case DeleteOneModel:
		result.DeletedCount += int64(wr.N)
	case UpdateOneModel:
		result.MatchedCount += int64(wr.N)
		result.ModifiedCount += int64(wr.NModified)
		for i, v := range wr.Upserted {
			result.UpsertedCount++
			result.UpsertedIDs[b.firstIndex+i] = v
		}
	}
}

func buildCommand(collection string, b batch, ordered bool, wc *writeconcern.WriteConcern) (*bson.Document, error) {
	switch b.category {
	case InsertOneModel:
		docs := make([]*bson.Document, len(b.models))
		for i, m := range b.models {
			docs[i] = m.Document
		}
		return command.Insert(collection, docs, ordered, wc), nil

	case DeleteOneModel:
		dels := make([]command.DeleteModel, len(b.models))
		for i, m := range b.models {
			limit := int32(1)
			if m.Kind == DeleteManyModel {
				limit = 0
			}
			dels[i] = command.DeleteModel{Selector: m.Filter, Limit: limit}
		}
		return command.Delete(collection, dels, ordered, wc), nil

	default: // UpdateOneModel category covers Replace/UpdateOne/UpdateMany
		ups := make([]command.UpdateModel, len(b.models))
		for i, m := range b.models {
			ups[i] = command.UpdateModel{
				Selector: m.Filter,
				Update:   m.Update,
				Multi:    m.Kind == UpdateManyModel,
				Upsert:   m.Upsert,
			}
		}
		return command.Update(collection, ups, ordered, wc), nil
	}
}
