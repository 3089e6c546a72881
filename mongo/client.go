// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mongo composes the lower layers (bson, wiremessage, connection,
// topology, command, cursor, bulk, auth) into the Collection/Database
// handles of §4.9: stateless (client, db[, collection]) triples that build
// a command document, select a server via the Topology, dispatch over a
// pooled stream, and parse the typed reply.
package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coredb-io/coredb-go-driver/address"
	"github.com/coredb-io/coredb-go-driver/auth"
	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/command"
	"github.com/coredb-io/coredb-go-driver/connection"
	"github.com/coredb-io/coredb-go-driver/connstring"
	"github.com/coredb-io/coredb-go-driver/description"
	"github.com/coredb-io/coredb-go-driver/eventhook"
	"github.com/coredb-io/coredb-go-driver/internal/logger"
	"github.com/coredb-io/coredb-go-driver/mongo/options"
	"github.com/coredb-io/coredb-go-driver/readpref"
	"github.com/coredb-io/coredb-go-driver/topology"
	"github.com/coredb-io/coredb-go-driver/wiremessage"
	"github.com/coredb-io/coredb-go-driver/writeconcern"
)

// driverName/driverVersion identify this driver in the isMaster handshake.
const (
	driverName    = "coredb-go-driver"
	driverVersion = "0.1.0"
)

// Client is a handle to a deployment: a single server, a sharded cluster,
// or a replica set, per §1. It is safe for concurrent use by multiple
// goroutines: the Topology underneath is itself concurrency-safe, per §5.
type Client struct {
	topo *topology.Topology
	ids  wiremessage.RequestIDGenerator

	readPreference *readpref.ReadPreference
	writeConcern   *writeconcern.WriteConcern

	authDB   string
	username string
	password string
	hasAuth  bool

	authMu sync.Mutex
	authed map[string]bool

	monitors eventhook.Registry
	logger   *logger.Logger
}

// Connect parses uri and returns a Client whose Topology has begun
// monitoring every seed, per §4.2/§4.5. Connect itself never blocks on
// network I/O; the first operation blocks on server selection instead.
func Connect(uri string, opts ...*options.ClientOptions) (*Client, error) {
	cs, err := connstring.Parse(uri)
	if err != nil {
		return nil, err
	}

	merged := &options.ClientOptions{MaxPoolSize: connection.DefaultMaxPoolSize}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadPreference != nil {
			merged.ReadPreference = o.ReadPreference
		}
		if o.WriteConcern != nil {
			merged.WriteConcern = o.WriteConcern
		}
		if o.AppName != "" {
			merged.AppName = o.AppName
		}
		if o.MaxPoolSize > 0 {
			merged.MaxPoolSize = o.MaxPoolSize
		}
	}

	rp, err := readPreferenceFromConnString(cs)
	if err != nil {
		return nil, err
	}
	if merged.ReadPreference != nil {
		rp = merged.ReadPreference
	}

	wc := writeConcernFromConnString(cs)
	if merged.WriteConcern != nil {
		wc = merged.WriteConcern
	}

	addrs := make([]address.Address, 0, len(cs.Hosts))
	for _, h := range cs.Hosts {
		a := address.Address(h.String())
		if !h.HasIPC() {
			a = a.Canonicalize()
		}
		addrs = append(addrs, a)
	}

	topoType := description.TopologyUnknown
	setName := cs.Options["replicaSet"]
	switch {
	case setName != "":
		topoType = description.TopologyReplicaSetNoPrimary
	case len(addrs) == 1:
		topoType = description.TopologySingle
	}

	info := topology.AppClientInfo{
		DriverName:    driverName,
		DriverVersion: driverVersion,
		OSType:        merged.AppName,
	}

	c := &Client{
		topo:           topology.New(topoType, setName, addrs, info, merged.MaxPoolSize),
		readPreference: rp,
		writeConcern:   wc,
		authed:         make(map[string]bool),
		logger:         logger.New(nil, nil),
	}
	if cs.HasAuth {
		c.hasAuth = true
		c.username = cs.User
		c.password = cs.Password
		c.authDB = cs.Database
		if c.authDB == "" {
			c.authDB = "admin"
		}
	}
	return c, nil
}

func readPreferenceFromConnString(cs *connstring.ConnString) (*readpref.ReadPreference, error) {
	mode := readpref.PrimaryMode
	if cs.ReadPreference != "" {
		m, err := readpref.ModeFromString(cs.ReadPreference)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	tagSets := make([]readpref.TagSet, 0, len(cs.ReadPrefTagSets))
	for _, ts := range cs.ReadPrefTagSets {
		tagSets = append(tagSets, readpref.TagSet(ts))
	}
	return readpref.New(mode, tagSets...), nil
}

func writeConcernFromConnString(cs *connstring.ConnString) *writeconcern.WriteConcern {
	wc := writeconcern.New()
	if w, ok := cs.Options["w"]; ok {
		if w == "majority" {
			wc.W = "majority"
		} else {
			var n int
			if _, err := fmt.Sscanf(w, "%d", &n); err == nil {
				wc.W = n
			}
		}
	}
	if ms, ok := cs.Options["wtimeoutMS"]; ok {
		var n int64
		if _, err := fmt.Sscanf(ms, "%d", &n); err == nil {
			wc.WTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if j, ok := cs.Options["journal"]; ok {
		b := j == "true"
		wc.Journal = &b
	}
	return wc
}

// Database returns a handle to the named database, inheriting the
// Client's read preference and write concern unless opts overrides them.
func (c *Client) Database(name string, opts ...*options.DatabaseOptions) *Database {
	rp, wc := c.readPreference, c.writeConcern
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadPreference != nil {
			rp = o.ReadPreference
		}
		if o.WriteConcern != nil {
			wc = o.WriteConcern
		}
	}
	return &Database{client: c, name: name, readPreference: rp, writeConcern: wc}
}

// Monitors returns the registry a caller subscribes command-started/
// command-completed observers on, per §9's listener/hook design note.
func (c *Client) Monitors() *eventhook.Registry { return &c.monitors }

// ListDatabases runs the listDatabases administrative command against the
// admin database, per SPEC_FULL.md's §4.9 supplement.
func (c *Client) ListDatabases(ctx context.Context) (*bson.Document, error) {
	return c.runCommand(ctx, topology.ReadOperation, readpref.Primary(), "admin", command.ListDatabases())
}

// Disconnect stops every server monitor and closes every pooled
// connection, per §5's cancellation rule: dropping a Client stops every
// monitor via its shared `running` signal.
func (c *Client) Disconnect(ctx context.Context) error {
	c.topo.Close()
	return nil
}

// acquire selects a server for kind/rp and checks out one of its pooled
// streams, authenticating the stream first if the Client carries
// credentials and this particular connection hasn't seen the handshake
// yet, per §4.7.
func (c *Client) acquire(ctx context.Context, kind topology.OperationKind, rp *readpref.ReadPreference) (*connection.PooledStream, *topology.Server, error) {
	srv, err := c.topo.SelectServer(ctx, kind, rp)
	if err != nil {
		return nil, nil, err
	}
	stream, err := srv.Connection(ctx)
	if err != nil {
		return nil, nil, err
	}
	if c.hasAuth {
		if err := c.ensureAuthenticated(stream); err != nil {
			srv.ReleaseConnection(stream)
			return nil, nil, err
		}
	}
	return stream, srv, nil
}

func (c *Client) ensureAuthenticated(stream *connection.PooledStream) error {
	id := stream.ID()
	c.authMu.Lock()
	done := c.authed[id]
	c.authMu.Unlock()
	if done {
		return nil
	}

	runner := &streamAuthRunner{ctx: context.Background(), stream: stream, ids: &c.ids, db: c.authDB}
	if err := auth.ScramSHA1(runner, c.authDB, c.username, c.password); err != nil {
		return err
	}

	c.authMu.Lock()
	c.authed[id] = true
	c.authMu.Unlock()
	return nil
}

// streamAuthRunner adapts a checked-out stream to auth.CommandRunner.
type streamAuthRunner struct {
	ctx    context.Context
	stream *connection.PooledStream
	ids    *wiremessage.RequestIDGenerator
	db     string
}

func (r *streamAuthRunner) RunCommand(cmd *bson.Document) (*bson.Document, error) {
	return command.Run(r.ctx, r.stream, r.ids, r.db, cmd)
}

// runCommand sends cmd against db via a freshly selected server, releasing
// the stream back to its pool before returning, per §4.4's "borrowed for
// the duration of a single exchange" contract. It is the path every
// non-cursor-returning Database/Collection operation funnels through.
func (c *Client) runCommand(ctx context.Context, kind topology.OperationKind, rp *readpref.ReadPreference, db string, cmd *bson.Document) (*bson.Document, error) {
	stream, srv, err := c.acquire(ctx, kind, rp)
	if err != nil {
		return nil, err
	}
	defer srv.ReleaseConnection(stream)
	return c.dispatch(ctx, stream, db, cmd)
}

// dispatch runs cmd over an already-acquired stream, publishing
// command-started/succeeded/failed events to both the eventhook registry
// and the internal logger, per §9.
func (c *Client) dispatch(ctx context.Context, stream command.WireSender, db string, cmd *bson.Document) (*bson.Document, error) {
	name := "(empty)"
	if els := cmd.Elements(); len(els) > 0 {
		name = els[0].Key
	}
	requestID := c.ids.Next()
	connID := "unknown"
	if idc, ok := stream.(interface{ ID() string }); ok {
		connID = idc.ID()
	}

	c.monitors.Started(&eventhook.CommandStartedEvent{
		CommandName: name, DatabaseName: db, RequestID: requestID, ConnectionID: connID,
	})
	c.logger.Print(logger.ComponentCommand, logger.LevelDebug, logger.CommandStartedMessage{
		CommandName: name, DatabaseName: db, RequestID: requestID, ConnectionID: connID,
	})

	start := time.Now()
	runID := &onceRequestID{id: requestID}
	reply, err := command.Run(ctx, stream, runID, db, cmd)
	dur := time.Since(start)

	if err != nil {
		c.monitors.Failed(&eventhook.CommandFailedEvent{
			CommandName: name, RequestID: requestID, ConnectionID: connID, Duration: dur, Failure: err.Error(),
		})
		c.logger.Print(logger.ComponentCommand, logger.LevelDebug, logger.CommandFailedMessage{
			CommandName: name, RequestID: requestID, ConnectionID: connID, DurationMS: dur.Milliseconds(), Failure: err.Error(),
		})
		return nil, err
	}

	c.monitors.Succeeded(&eventhook.CommandSucceededEvent{
		CommandName: name, RequestID: requestID, ConnectionID: connID, Duration: dur,
	})
	c.logger.Print(logger.ComponentCommand, logger.LevelDebug, logger.CommandSucceededMessage{
		CommandName: name, RequestID: requestID, ConnectionID: connID, DurationMS: dur.Milliseconds(),
	})
	return reply, nil
}

// onceRequestID hands out the single, already-allocated request id used
// for an event-monitored dispatch, so the id reported in the started event
// matches the id actually stamped on the wire message.
type onceRequestID struct{ id int32 }

func (o *onceRequestID) Next() int32 { return o.id }
