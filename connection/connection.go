// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package connection implements the single-socket wire message transport
// and the per-host bounded pool described in §4.4. It purposefully hides
// the underlying network and speaks only in wiremessage framing; TLS, if
// any, is the caller's concern through the Dialer abstraction, per §1's
// non-goal of client-side TLS negotiation.
package connection

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/coredb-io/coredb-go-driver/address"
	"github.com/coredb-io/coredb-go-driver/internal"
	"github.com/coredb-io/coredb-go-driver/wiremessage"
)

// pastDeadline is set on the socket to abort an in-progress read or write
// the instant ctx is canceled without a deadline of its own (SetDeadline
// only races the clock; it does nothing for an explicit cancel).
var pastDeadline = time.Unix(0, 0)

var globalConnectionID uint64

func nextConnectionID() uint64 {
	return atomic.AddUint64(&globalConnectionID, 1)
}

// Connection is a single, exclusively-owned socket speaking the wire
// protocol framing.
type Connection interface {
	WriteWireMessage(ctx context.Context, msg []byte) error
	ReadWireMessage(ctx context.Context) ([]byte, error)
	Close() error
	Alive() bool
	Expired() bool
	ID() string
}

// Dialer opens the network half of a Connection. Swapping in a Dialer
// that returns a *tls.Conn is how a caller layers TLS on without this
// package knowing anything about it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext implements Dialer.
func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// DefaultDialer is used when no Dialer option is supplied.
var DefaultDialer Dialer = &net.Dialer{}

// Error wraps a lower-level network failure encountered on a Connection.
type Error struct {
	ConnectionID string
	Wrapped      error
	message      string
}

func (e *Error) Error() string {
	if e.message != "" {
		return fmt.Sprintf("connection(%s): %s: %s", e.ConnectionID, e.message, e.Wrapped)
	}
	return fmt.Sprintf("connection(%s): %s", e.ConnectionID, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

type config struct {
	dialer       Dialer
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
	lifetime     time.Duration
}

// Option configures a Connection built by Dial.
type Option func(*config)

// WithDialer overrides the Dialer used to open the socket.
func WithDialer(d Dialer) Option { return func(c *config) { c.dialer = d } }

// WithReadTimeout bounds how long a single ReadWireMessage may block.
func WithReadTimeout(d time.Duration) Option { return func(c *config) { c.readTimeout = d } }

// WithWriteTimeout bounds how long a single WriteWireMessage may block.
func WithWriteTimeout(d time.Duration) Option { return func(c *config) { c.writeTimeout = d } }

// WithIdleTimeout marks a Connection Expired after it has sat unused for d.
func WithIdleTimeout(d time.Duration) Option { return func(c *config) { c.idleTimeout = d } }

// WithLifetime marks a Connection Expired d after it was opened, regardless
// of use.
func WithLifetime(d time.Duration) Option { return func(c *config) { c.lifetime = d } }

func newConfig(opts ...Option) *config {
	cfg := &config{dialer: DefaultDialer}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

type conn struct {
	addr             address.Address
	id               string
	nc               net.Conn
	readTimeout      time.Duration
	writeTimeout     time.Duration
	idleTimeout      time.Duration
	idleDeadline     time.Time
	lifetimeDeadline time.Time
	dead             bool
}

// Dial opens a new Connection to addr.
func Dial(ctx context.Context, addr address.Address, opts ...Option) (Connection, error) {
	cfg := newConfig(opts...)

	nc, err := cfg.dialer.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return nil, &Error{ConnectionID: string(addr), Wrapped: err, message: "dial"}
	}

	var lifetimeDeadline time.Time
	if cfg.lifetime > 0 {
		lifetimeDeadline = time.Now().Add(cfg.lifetime)
	}

	c := &conn{
		addr:             addr,
		id:               fmt.Sprintf("%s[-%d]", addr, nextConnectionID()),
		nc:               nc,
		readTimeout:      cfg.readTimeout,
		writeTimeout:     cfg.writeTimeout,
		idleTimeout:      cfg.idleTimeout,
		lifetimeDeadline: lifetimeDeadline,
	}
	c.bumpIdleDeadline()
	return c, nil
}

func (c *conn) bumpIdleDeadline() {
	if c.idleTimeout > 0 {
		c.idleDeadline = time.Now().Add(c.idleTimeout)
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) Alive() bool { return !c.dead }

func (c *conn) Expired() bool {
	if c.dead {
		return true
	}
	now := time.Now()
	if !c.idleDeadline.IsZero() && now.After(c.idleDeadline) {
		return true
	}
	if !c.lifetimeDeadline.IsZero() && now.After(c.lifetimeDeadline) {
		return true
	}
	return false
}

// WriteWireMessage writes a fully framed wire message, including its
// 16-byte header, to the socket.
func (c *conn) WriteWireMessage(ctx context.Context, msg []byte) error {
	if c.dead {
		return &Error{ConnectionID: c.id, Wrapped: fmt.Errorf("connection is dead")}
	}
	deadline, _ := ctx.Deadline()
	if c.writeTimeout > 0 {
		wd := time.Now().Add(c.writeTimeout)
		if deadline.IsZero() || wd.Before(deadline) {
			deadline = wd
		}
	}
	if !deadline.IsZero() {
		if err := c.nc.SetWriteDeadline(deadline); err != nil {
			return &Error{ConnectionID: c.id, Wrapped: err, message: "set write deadline"}
		}
	}

	listener := internal.NewCancellationListener()
	go listener.Listen(ctx, func() { c.nc.SetWriteDeadline(pastDeadline) })
	_, err := c.nc.Write(msg)
	listener.StopListening()
	if err != nil {
		c.dead = true
		return &Error{ConnectionID: c.id, Wrapped: err, message: "write"}
	}
	c.bumpIdleDeadline()
	return nil
}

// ReadWireMessage reads one complete, framed wire message from the socket,
// per §4.3's reading rule: the first 4 bytes of the header give the total
// message length, and exactly that many bytes are read.
func (c *conn) ReadWireMessage(ctx context.Context) ([]byte, error) {
	if c.dead {
		return nil, &Error{ConnectionID: c.id, Wrapped: fmt.Errorf("connection is dead")}
	}
	deadline, _ := ctx.Deadline()
	if c.readTimeout > 0 {
		rd := time.Now().Add(c.readTimeout)
		if deadline.IsZero() || rd.Before(deadline) {
			deadline = rd
		}
	}
	if !deadline.IsZero() {
		if err := c.nc.SetReadDeadline(deadline); err != nil {
			return nil, &Error{ConnectionID: c.id, Wrapped: err, message: "set read deadline"}
		}
	}

	listener := internal.NewCancellationListener()
	go listener.Listen(ctx, func() { c.nc.SetReadDeadline(pastDeadline) })
	buf, err := c.readWireMessageBody()
	listener.StopListening()
	if err != nil {
		c.dead = true
		return nil, err
	}
	c.bumpIdleDeadline()
	return buf, nil
}

func (c *conn) readWireMessageBody() ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := readFull(c.nc, sizeBuf[:]); err != nil {
		return nil, &Error{ConnectionID: c.id, Wrapped: err, message: "read length"}
	}
	size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
	if size < 16 {
		return nil, &wiremessage.ProtocolError{Reason: fmt.Sprintf("message length %d smaller than header", size)}
	}

	buf := make([]byte, size)
	copy(buf, sizeBuf[:])
	if _, err := readFull(c.nc, buf[4:]); err != nil {
		return nil, &Error{ConnectionID: c.id, Wrapped: err, message: "read body"}
	}
	return buf, nil
}

func readFull(r net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *conn) Close() error {
	c.dead = true
	return c.nc.Close()
}
