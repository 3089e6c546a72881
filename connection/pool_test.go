// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/coredb-io/coredb-go-driver/address"
)

// fakeConn is a minimal net.Conn good enough to exercise dialing without
// a real socket.
type fakeConn struct {
	net.Conn
	closed bool
}

func (f *fakeConn) Read(b []byte) (int, error)         { return 0, errEOF }
func (f *fakeConn) Write(b []byte) (int, error)         { return len(b), nil }
func (f *fakeConn) Close() error                        { f.closed = true; return nil }
func (f *fakeConn) SetDeadline(time.Time) error         { return nil }
func (f *fakeConn) SetReadDeadline(time.Time) error     { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error    { return nil }

type eofError struct{}

func (eofError) Error() string { return "eof" }

var errEOF = eofError{}

func fakeDialer() Dialer {
	return DialerFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		return &fakeConn{}, nil
	})
}

func TestPoolCapacityZeroRefusesAll(t *testing.T) {
	p := NewPool(address.Address("localhost:27017"), 0)
	_, err := p.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected acquire to fail on a zero-capacity pool")
	}
}

func TestPoolAcquireThenDropReuses(t *testing.T) {
	p := NewPool(address.Address("localhost:27017"), 2, WithDialer(fakeDialer()))

	s1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	first := s1.Connection.ID()
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if s2.Connection.ID() != first {
		t.Fatalf("expected LIFO reuse of %s, got %s", first, s2.Connection.ID())
	}
}

func TestPoolClearInvalidatesOutstandingStream(t *testing.T) {
	p := NewPool(address.Address("localhost:27017"), 2, WithDialer(fakeDialer()))

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	p.Clear()

	if err := s.Close(); err != nil {
		t.Fatalf("close after clear: %v", err)
	}

	s2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after clear: %v", err)
	}
	if s2.Connection.ID() == s.Connection.ID() {
		t.Fatalf("expected a fresh connection after Clear, got reused %s", s2.Connection.ID())
	}
}

func TestPoolRespectsCapacity(t *testing.T) {
	p := NewPool(address.Address("localhost:27017"), 1, WithDialer(fakeDialer()))

	s1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	if err == nil {
		t.Fatal("expected second acquire on a cap-1 pool to block until timeout")
	}

	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
