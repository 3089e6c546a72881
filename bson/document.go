// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import "strings"

// Elem is one key/value pair of a Document, kept in the order it was
// appended or decoded.
type Elem struct {
	Key   string
	Value Value
}

// Document is an ordered mapping from string keys to Values. Key order is
// preserved on the wire and by this in-memory representation, per §3.
type Document struct {
	elems []Elem
}

// NewDocument builds a Document from the given elements, in order.
func NewDocument(elems ...Elem) *Document {
	d := &Document{elems: make([]Elem, 0, len(elems))}
	for _, e := range elems {
		d.Append(e.Key, e.Value)
	}
	return d
}

// D is a convenience alias for building literal documents:
// bson.D{{"x", bson.Int32(1)}}.
type D []Elem

// Doc materializes a D literal into a Document.
func (d D) Doc() *Document {
	return NewDocument(d...)
}

// Len returns the number of elements in the document.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.elems)
}

// Keys returns the document's keys in order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.elems))
	for i, e := range d.elems {
		out[i] = e.Key
	}
	return out
}

// Elements returns the document's elements in order. The returned slice
// must not be mutated by the caller.
func (d *Document) Elements() []Elem {
	if d == nil {
		return nil
	}
	return d.elems
}

// Append adds key/v to the end of the document, even if key already
// exists (matching append-order semantics used when building commands).
// It returns d for chaining.
func (d *Document) Append(key string, v Value) *Document {
	d.elems = append(d.elems, Elem{Key: key, Value: v})
	return d
}

// Lookup returns the first value stored under key and whether it was found.
func (d *Document) Lookup(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	for _, e := range d.elems {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// LookupPath resolves a dot-separated path, descending into nested
// documents and arrays (array indices are decimal key strings, per §3).
// This supplements the base key/value model for convenience; it does not
// change the equality or wire semantics of a Document.
func (d *Document) LookupPath(path string) (Value, bool) {
	parts := strings.Split(path, ".")
	cur := d
	for i, part := range parts {
		v, ok := cur.Lookup(part)
		if !ok {
			return Value{}, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if v.Kind() != KindDocument && v.Kind() != KindArray {
			return Value{}, false
		}
		cur = v.AsDocument()
	}
	return Value{}, false
}

// Delete removes the first element stored under key, returning its value
// and whether it was present.
func (d *Document) Delete(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	for i, e := range d.elems {
		if e.Key == key {
			v := e.Value
			d.elems = append(d.elems[:i], d.elems[i+1:]...)
			return v, true
		}
	}
	return Value{}, false
}

// Set replaces the value stored under key if present, otherwise appends it.
func (d *Document) Set(key string, v Value) *Document {
	for i, e := range d.elems {
		if e.Key == key {
			d.elems[i].Value = v
			return d
		}
	}
	return d.Append(key, v)
}

// Equal reports whether d and other have the same key order and
// pairwise-equal values. Numeric kinds are not coerced, per §4.1.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.elems) != len(other.elems) {
		return false
	}
	for i, e := range d.elems {
		oe := other.elems[i]
		if e.Key != oe.Key {
			return false
		}
		if !e.Value.Equal(oe.Value) {
			return false
		}
	}
	return true
}

// ArrayFromValues builds an array-kind Document whose keys are the
// sequential decimal indices "0","1",...,"n-1", per §4.1's encode rule.
func ArrayFromValues(vals ...Value) *Document {
	d := &Document{elems: make([]Elem, 0, len(vals))}
	for i, v := range vals {
		d.Append(itoa(i), v)
	}
	return d
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
