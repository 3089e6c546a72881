// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/coredb-io/coredb-go-driver/address"
)

// ConnectionError reports a failure to establish a new TCP connection
// while servicing a pool acquisition.
type ConnectionError struct {
	Address address.Address
	Wrapped error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection: could not connect to %s: %s", e.Address, e.Wrapped)
}

func (e *ConnectionError) Unwrap() error { return e.Wrapped }

// LockError reports that the pool's internal mutex was found poisoned,
// i.e. a prior holder panicked while it was held.
type LockError struct {
	Address address.Address
}

func (e *LockError) Error() string {
	return fmt.Sprintf("connection: pool lock for %s is poisoned", e.Address)
}

// DefaultMaxPoolSize is the pool capacity used when none is configured.
const DefaultMaxPoolSize = 5

// MinPoolSize is the smallest capacity at which a Pool hands out streams.
// NewPool does not enforce it: a pool built with cap 0 refuses every
// acquisition.
const MinPoolSize = 1

// PooledStream is a Connection checked out from a Pool. Callers must call
// Close to return it (or discard it on error), never the other way around.
type PooledStream struct {
	Connection
	pool      *Pool
	iteration uint64
	dead      bool
}

// Close returns the stream to its pool, unless the stream was drawn from
// an iteration the pool has since invalidated via Clear, or the
// underlying connection is no longer Alive, in which case the socket is
// closed for good.
func (s *PooledStream) Close() error {
	return s.pool.drop(s)
}

// Pool is a per-host, bounded, LIFO pool of Connections, per §4.4.
type Pool struct {
	addr address.Address
	opts []Option
	cap  int

	mu        sync.Mutex
	poisoned  bool
	cond      *sync.Cond
	idle      []Connection
	openCount int
	iteration uint64
	closed    bool
}

// NewPool constructs a Pool for addr with the given capacity. A cap of 0
// produces a pool that refuses every acquisition; a negative cap is
// treated as DefaultMaxPoolSize.
func NewPool(addr address.Address, cap int, opts ...Option) *Pool {
	if cap < 0 {
		cap = DefaultMaxPoolSize
	}
	p := &Pool{addr: addr, opts: opts, cap: cap}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Acquire returns an exclusively-owned stream, blocking until one is
// available, a new connection can be opened, or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*PooledStream, error) {
	if p.cap == 0 {
		return nil, &ConnectionError{Address: p.addr, Wrapped: fmt.Errorf("pool capacity is zero")}
	}

	p.mu.Lock()
	if p.poisoned {
		p.mu.Unlock()
		return nil, &LockError{Address: p.addr}
	}

	for {
		if p.closed {
			p.mu.Unlock()
			return nil, &ConnectionError{Address: p.addr, Wrapped: fmt.Errorf("pool is closed")}
		}
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			iter := p.iteration
			p.mu.Unlock()
			return &PooledStream{Connection: c, pool: p, iteration: iter}, nil
		}
		if p.openCount < p.cap {
			p.openCount++
			iter := p.iteration
			p.mu.Unlock()

			c, err := Dial(ctx, p.addr, p.opts...)
			if err != nil {
				p.mu.Lock()
				p.openCount--
				p.mu.Unlock()
				p.cond.Broadcast()
				return nil, &ConnectionError{Address: p.addr, Wrapped: err}
			}
			return &PooledStream{Connection: c, pool: p, iteration: iter}, nil
		}

		waitDone := make(chan struct{})
		if ctx != nil {
			if done := ctx.Done(); done != nil {
				go func() {
					select {
					case <-done:
						p.mu.Lock()
						p.cond.Broadcast()
						p.mu.Unlock()
					case <-waitDone:
					}
				}()
			}
		}
		p.cond.Wait()
		close(waitDone)

		if ctx != nil {
			select {
			case <-ctx.Done():
				p.mu.Unlock()
				return nil, ctx.Err()
			default:
			}
		}
	}
}

// drop is the implementation behind PooledStream.Close: it either returns
// the stream to the idle list, or discards it when it is dead, expired, or
// stale relative to the pool's current iteration.
func (p *Pool) drop(s *PooledStream) error {
	if s.dead {
		return nil
	}
	s.dead = true

	p.mu.Lock()
	stale := s.iteration != p.iteration
	p.mu.Unlock()

	if stale || !s.Connection.Alive() || s.Connection.Expired() || p.isClosed() {
		err := s.Connection.Close()
		p.mu.Lock()
		p.openCount--
		p.mu.Unlock()
		p.cond.Broadcast()
		return err
	}

	p.mu.Lock()
	p.idle = append(p.idle, s.Connection)
	p.mu.Unlock()
	p.cond.Broadcast()
	return nil
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Clear empties the idle list, zeroes the open count, and advances the
// iteration counter so outstanding streams are discarded rather than
// returned on their next Close, per §4.4's invalidation rule.
func (p *Pool) Clear() {
	p.mu.Lock()
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
	p.openCount = 0
	p.iteration++
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Close clears the pool and marks it closed; subsequent Acquire calls
// fail immediately.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
	p.mu.Unlock()
	p.cond.Broadcast()
}
