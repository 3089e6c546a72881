// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package internal

import "context"

// CancellationListener races a context against a blocking socket read or
// write. connection.go starts one before every WriteWireMessage/
// ReadWireMessage call and gives it an abort func that resets the
// underlying net.Conn's deadline into the past, which is the only way to
// unblock a goroutine parked in Read/Write on a context it doesn't control.
type CancellationListener struct {
	done chan struct{}
}

// NewCancellationListener constructs a CancellationListener.
func NewCancellationListener() *CancellationListener {
	return &CancellationListener{
		done: make(chan struct{}),
	}
}

// Listen blocks until ctx is done or StopListening is called, whichever
// comes first. abortFn only runs when ctx was explicitly canceled
// (ctx.Err() == context.Canceled), not on a plain deadline expiry, since a
// deadline expiry is already enforced directly on the socket by
// connection.go and doesn't need abortFn to race it a second time.
func (c *CancellationListener) Listen(ctx context.Context, abortFn func()) {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.Canceled {
			abortFn()
		}
		<-c.done
	case <-c.done:
	}
}

// StopListening ends an in-progress Listen call and blocks until it has
// returned. Every Listen goroutine must be paired with exactly one
// StopListening call; without it Listen never returns, even after ctx is
// done.
func (c *CancellationListener) StopListening() {
	c.done <- struct{}{}
}
