// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"

	"github.com/coredb-io/coredb-go-driver/bson"
)

// fakeServer plays the server side of SCRAM-SHA-1 honestly (or dishonestly,
// for the negative tests), so the client implementation can be exercised
// without a real deployment.
type fakeServer struct {
	username, password string
	salt                []byte
	iterations          int

	corruptNonce     bool
	corruptSignature bool

	clientNonce  string
	serverNonce  string
	clientFirst  string
	serverFirst  string
	saltedPass   []byte
	authMessage  string
	done         bool
}

func (s *fakeServer) RunCommand(cmd *bson.Document) (*bson.Document, error) {
	if v, ok := cmd.Lookup("saslStart"); ok && v.Kind() == bson.KindInt32 {
		return s.start(cmd)
	}
	return s.continue_(cmd)
}

func (s *fakeServer) start(cmd *bson.Document) (*bson.Document, error) {
	v, _ := cmd.Lookup("payload")
	_, data := v.AsBinary()
	s.clientFirst = string(data)
	bare := strings.TrimPrefix(s.clientFirst, "n,,")
	fields, _ := parseSCRAMPayload(bare)
	s.clientNonce = fields["r"]

	s.serverNonce = s.clientNonce + "SERVERPART"
	if s.corruptNonce {
		s.serverNonce = "garbage" + s.serverNonce
	}
	saltB64 := base64.StdEncoding.EncodeToString(s.salt)
	s.serverFirst = "r=" + s.serverNonce + ",s=" + saltB64 + ",i=" + itoa(s.iterations)

	hashedPassword := md5Hex(s.username + ":mongo:" + s.password)
	s.saltedPass = pbkdf2.Key([]byte(hashedPassword), s.salt, s.iterations, 20, sha1.New)

	reply := bson.NewDocument(
		bson.Elem{Key: "ok", Value: bson.Double(1)},
		bson.Elem{Key: "conversationId", Value: bson.Int32(1)},
		bson.Elem{Key: "payload", Value: bson.Binary(0, []byte(s.serverFirst))},
		bson.Elem{Key: "done", Value: bson.Boolean(false)},
	)
	return reply, nil
}

func (s *fakeServer) continue_(cmd *bson.Document) (*bson.Document, error) {
	v, _ := cmd.Lookup("payload")
	_, data := v.AsBinary()

	if len(data) == 0 {
		return bson.NewDocument(
			bson.Elem{Key: "ok", Value: bson.Double(1)},
			bson.Elem{Key: "done", Value: bson.Boolean(true)},
		), nil
	}

	fields, _ := parseSCRAMPayload(string(data))
	withoutProof := "c=biws,r=" + s.serverNonce
	bare := strings.TrimPrefix(s.clientFirst, "n,,")
	s.authMessage = bare + "," + s.serverFirst + "," + withoutProof

	serverKey := hmacSHA1(s.saltedPass, "Server Key")
	sig := hmacSHA1(serverKey, s.authMessage)
	if s.corruptSignature {
		sig[0] ^= 0xFF
	}

	_ = fields["p"] // the client proof; not re-verified by this test double

	reply := bson.NewDocument(
		bson.Elem{Key: "ok", Value: bson.Double(1)},
		bson.Elem{Key: "payload", Value: bson.Binary(0, []byte("v="+base64.StdEncoding.EncodeToString(sig)))},
		bson.Elem{Key: "done", Value: bson.Boolean(true)},
	)
	return reply, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func TestScramSHA1Succeeds(t *testing.T) {
	srv := &fakeServer{username: "alice", password: "s3kret", salt: []byte("abcdsalt12345678"), iterations: 10000}
	if err := ScramSHA1(srv, "admin", "alice", "s3kret"); err != nil {
		t.Fatalf("ScramSHA1: %v", err)
	}
}

func TestScramSHA1RejectsInvalidRnonce(t *testing.T) {
	srv := &fakeServer{username: "alice", password: "s3kret", salt: []byte("abcdsalt12345678"), iterations: 10000, corruptNonce: true}
	err := ScramSHA1(srv, "admin", "alice", "s3kret")
	if _, ok := err.(*MaliciousServerError); !ok {
		t.Fatalf("expected MaliciousServerError for bad nonce prefix, got %v", err)
	}
}

func TestScramSHA1RejectsInvalidServerSignature(t *testing.T) {
	srv := &fakeServer{username: "alice", password: "s3kret", salt: []byte("abcdsalt12345678"), iterations: 10000, corruptSignature: true}
	err := ScramSHA1(srv, "admin", "alice", "s3kret")
	if _, ok := err.(*MaliciousServerError); !ok {
		t.Fatalf("expected MaliciousServerError for bad server signature, got %v", err)
	}
}
