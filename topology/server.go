// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package topology implements the Topology manager: the per-server
// monitor loop of §4.5 and the SDAM-driven server selection of §4.6,
// built atop description.TopologyDescription.
package topology

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/coredb-io/coredb-go-driver/address"
	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/connection"
	"github.com/coredb-io/coredb-go-driver/description"
	"github.com/coredb-io/coredb-go-driver/internal/csot"
	"github.com/coredb-io/coredb-go-driver/wiremessage"
)

// DefaultHeartbeatInterval is how often a Server's monitor re-checks an
// otherwise-healthy server, per §4.5.
const DefaultHeartbeatInterval = 10 * time.Second

const minHeartbeatInterval = 500 * time.Millisecond

// heartbeatTimeout bounds a single isMaster round trip.
const heartbeatTimeout = 10 * time.Second

// AppClientInfo identifies this driver in the isMaster handshake's
// client.driver/client.os sub-documents.
type AppClientInfo struct {
	DriverName    string
	DriverVersion string
	OSType        string
}

func (i AppClientInfo) toDocument() *bson.Document {
	driver := bson.NewDocument(
		bson.Elem{Key: "name", Value: bson.String(i.DriverName)},
		bson.Elem{Key: "version", Value: bson.String(i.DriverVersion)},
	)
	os := bson.NewDocument(bson.Elem{Key: "type", Value: bson.String(i.OSType)})
	return bson.NewDocument(
		bson.Elem{Key: "driver", Value: bson.DocumentValue(driver)},
		bson.Elem{Key: "os", Value: bson.DocumentValue(os)},
	)
}

// Server owns one dedicated monitor goroutine and the shared connection
// pool used to serve operations against a single host, per §4.4/§4.5.
type Server struct {
	addr address.Address
	pool *connection.Pool
	sem  *semaphore.Weighted
	ids  wiremessage.RequestIDGenerator
	info AppClientInfo

	heartbeatInterval time.Duration

	desc atomic.Value // description.ServerDescription

	checkNow chan struct{}
	done     chan struct{}
	stopped  chan struct{}

	subMu       sync.Mutex
	subscribers map[uint64]chan description.ServerDescription
	nextSubID   uint64

	onUpdate func(description.ServerDescription)
}

// NewServer constructs a Server for addr. poolCap bounds both the shared
// connection pool and the semaphore gating concurrent checkouts from it;
// onUpdate is invoked, under no lock, after every heartbeat.
func NewServer(addr address.Address, poolCap int, info AppClientInfo, onUpdate func(description.ServerDescription), opts ...connection.Option) *Server {
	if poolCap <= 0 {
		poolCap = connection.DefaultMaxPoolSize
	}
	s := &Server{
		addr:              addr,
		pool:              connection.NewPool(addr, poolCap, opts...),
		sem:               semaphore.NewWeighted(int64(poolCap)),
		info:              info,
		heartbeatInterval: DefaultHeartbeatInterval,
		checkNow:          make(chan struct{}, 1),
		done:              make(chan struct{}),
		stopped:           make(chan struct{}),
		subscribers:       make(map[uint64]chan description.ServerDescription),
		onUpdate:          onUpdate,
	}
	s.desc.Store(description.NewDefaultServerDescription(addr))
	go s.monitor()
	return s
}

// Description returns the most recently observed ServerDescription.
func (s *Server) Description() description.ServerDescription {
	return s.desc.Load().(description.ServerDescription)
}

// Connection checks out a pooled stream for an application operation,
// bounded by the server's semaphore so outstanding checkouts never exceed
// the pool's capacity even across retries, per SPEC_FULL.md's connection
// pool supplement.
func (s *Server) Connection(ctx context.Context) (*connection.PooledStream, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	stream, err := s.pool.Acquire(ctx)
	if err != nil {
		s.sem.Release(1)
		return nil, err
	}
	return stream, nil
}

// ReleaseConnection returns a stream obtained from Connection.
func (s *Server) ReleaseConnection(stream *connection.PooledStream) error {
	defer s.sem.Release(1)
	return stream.Close()
}

// RequestImmediateCheck wakes the monitor loop without waiting for the
// next heartbeat tick, per §4.5.
func (s *Server) RequestImmediateCheck() {
	select {
	case s.checkNow <- struct{}{}:
	default:
	}
}

// Subscribe returns a channel receiving every future ServerDescription,
// pre-populated with the current one.
func (s *Server) Subscribe() (<-chan description.ServerDescription, func()) {
	ch := make(chan description.ServerDescription, 1)
	ch <- s.Description()

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		if c, ok := s.subscribers[id]; ok {
			close(c)
			delete(s.subscribers, id)
		}
		s.subMu.Unlock()
	}
}

// Close stops the monitor goroutine and closes the pool.
func (s *Server) Close() {
	close(s.done)
	<-s.stopped
	s.pool.Close()
}

func (s *Server) monitor() {
	defer close(s.stopped)

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()
	rateLimit := time.NewTicker(minHeartbeatInterval)
	defer rateLimit.Stop()

	s.runHeartbeat()

	for {
		select {
		case <-s.done:
			s.closeSubscribers()
			return
		case <-heartbeat.C:
		case <-s.checkNow:
		}

		select {
		case <-s.done:
			s.closeSubscribers()
			return
		case <-rateLimit.C:
		}

		s.runHeartbeat()
	}
}

func (s *Server) closeSubscribers() {
	s.subMu.Lock()
	for id, c := range s.subscribers {
		close(c)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()
}

// runHeartbeat performs one isMaster round trip and publishes the
// resulting ServerDescription, per §4.5's numbered steps.
func (s *Server) runHeartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), heartbeatTimeout)
	defer cancel()
	ctx = csot.NewSkipMaxTimeContext(ctx)

	conn, err := connection.Dial(ctx, s.addr,
		connection.WithReadTimeout(heartbeatTimeout),
		connection.WithWriteTimeout(heartbeatTimeout),
	)
	if err != nil {
		s.publish(s.Description().SetErr(err))
		s.pool.Clear()
		return
	}
	defer conn.Close()

	start := time.Now()
	req := wiremessage.Query{
		Header:             wiremessage.Header{RequestID: s.ids.Next()},
		FullCollectionName: "admin.$cmd",
		NumberToReturn:     -1,
		Query: bson.NewDocument(
			bson.Elem{Key: "isMaster", Value: bson.Int32(1)},
			bson.Elem{Key: "client", Value: bson.DocumentValue(s.info.toDocument())},
		),
	}
	buf, err := req.AppendWireMessage(nil)
	if err != nil {
		s.publish(s.Description().SetErr(err))
		return
	}
	if err := conn.WriteWireMessage(ctx, buf); err != nil {
		s.publish(s.Description().SetErr(err))
		s.pool.Clear()
		return
	}
	raw, err := conn.ReadWireMessage(ctx)
	if err != nil {
		s.publish(s.Description().SetErr(err))
		s.pool.Clear()
		return
	}
	rtt := time.Since(start)

	var reply wiremessage.Reply
	if err := reply.UnmarshalWireMessage(raw); err != nil {
		s.publish(s.Description().SetErr(err))
		return
	}
	if len(reply.Documents) == 0 {
		s.publish(s.Description().SetErr(err))
		return
	}

	result := description.ParseIsMasterResult(reply.Documents[0])
	s.publish(s.Description().Update(result, rtt))
}

func (s *Server) publish(desc description.ServerDescription) {
	s.desc.Store(desc)
	if s.onUpdate != nil {
		s.onUpdate(desc)
	}
	s.subMu.Lock()
	for _, c := range s.subscribers {
		select {
		case <-c:
		default:
		}
		c <- desc
	}
	s.subMu.Unlock()
}
