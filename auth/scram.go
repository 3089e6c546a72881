// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package auth implements the SCRAM-SHA-1 authentication handshake of
// §4.7 directly, rather than through a packaged SASL/SCRAM client, using
// the primitives §4.7 names: MD5, PBKDF2-HMAC-SHA1, and HMAC-SHA1.
package auth

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/coredb-io/coredb-go-driver/bson"
)

// MaliciousServerError reports a SCRAM server response that fails a
// client-side integrity check, implying the server is not who it claims
// to be, per §4.7.
type MaliciousServerError struct {
	Reason string
}

func (e *MaliciousServerError) Error() string {
	return fmt.Sprintf("auth: malicious server: %s", e.Reason)
}

// AuthenticationError wraps any other authentication failure (bad
// credentials, malformed server payload, transport error).
type AuthenticationError struct {
	Database string
	Wrapped  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("auth: authentication failed against %q: %s", e.Database, e.Wrapped)
}

func (e *AuthenticationError) Unwrap() error { return e.Wrapped }

// CommandRunner abstracts sending a single command document to the
// target database's $cmd and receiving the reply document, so this
// package does not depend on the wire/connection layers directly.
type CommandRunner interface {
	RunCommand(cmd *bson.Document) (*bson.Document, error)
}

// ScramSHA1 performs the SCRAM-SHA-1 handshake of §4.7 against db using
// runner, authenticating username/password.
func ScramSHA1(runner CommandRunner, db, username, password string) error {
	clientNonce, err := randomNonce(24)
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}

	firstBare := fmt.Sprintf("n=%s,r=%s", encodeUsername(username), clientNonce)
	firstMessage := "n,," + firstBare

	startReply, err := runner.RunCommand(bson.NewDocument(
		bson.Elem{Key: "saslStart", Value: bson.Int32(1)},
		bson.Elem{Key: "mechanism", Value: bson.String("SCRAM-SHA-1")},
		bson.Elem{Key: "payload", Value: bson.Binary(0, []byte(firstMessage))},
		bson.Elem{Key: "autoAuthorize", Value: bson.Int32(1)},
	))
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}
	if !commandOK(startReply) {
		return &AuthenticationError{Database: db, Wrapped: fmt.Errorf("saslStart rejected")}
	}

	conversationID, hasConversationID := startReply.Lookup("conversationId")
	serverFirst, err := payloadString(startReply)
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}

	fields, err := parseSCRAMPayload(serverFirst)
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}
	serverNonce := fields["r"]
	if !strings.HasPrefix(serverNonce, clientNonce) {
		return &MaliciousServerError{Reason: "InvalidRnonce"}
	}
	saltB64 := fields["s"]
	iterations, err := strconv.Atoi(fields["i"])
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: fmt.Errorf("invalid iteration count: %w", err)}
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}

	hashedPassword := md5Hex(username + ":mongo:" + password)
	saltedPassword := pbkdf2.Key([]byte(hashedPassword), salt, iterations, 20, sha1.New)
	clientKey := hmacSHA1(saltedPassword, "Client Key")
	storedKey := sha1Sum(clientKey)

	withoutProof := "c=biws,r=" + serverNonce
	authMessage := firstBare + "," + serverFirst + "," + withoutProof

	signature := hmacSHA1(storedKey, authMessage)
	proof := xorBytes(clientKey, signature)

	finalMessage := withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof)

	continueCmd := bson.NewDocument(
		bson.Elem{Key: "saslContinue", Value: bson.Int32(1)},
		bson.Elem{Key: "payload", Value: bson.Binary(0, []byte(finalMessage))},
	)
	if hasConversationID {
		continueCmd.Append("conversationId", conversationID)
	}

	continueReply, err := runner.RunCommand(continueCmd)
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}
	if !commandOK(continueReply) {
		return &AuthenticationError{Database: db, Wrapped: fmt.Errorf("saslContinue rejected")}
	}

	serverSecondPayload, err := payloadString(continueReply)
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}
	secondFields, err := parseSCRAMPayload(serverSecondPayload)
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}
	serverKey := hmacSHA1(saltedPassword, "Server Key")
	expectedSignature := hmacSHA1(serverKey, authMessage)
	gotSignature, err := base64.StdEncoding.DecodeString(secondFields["v"])
	if err != nil {
		return &AuthenticationError{Database: db, Wrapped: err}
	}
	if subtle.ConstantTimeCompare(expectedSignature, gotSignature) != 1 {
		return &MaliciousServerError{Reason: "InvalidServerSignature"}
	}

	return finishConversation(runner, db, conversationID, continueReply)
}

// finishConversation loops empty saslContinue commands until the server
// reports done: true, per §4.7 step 5.
func finishConversation(runner CommandRunner, db string, conversationID bson.Value, lastReply *bson.Document) error {
	reply := lastReply
	for {
		if v, ok := reply.Lookup("done"); ok && v.Kind() == bson.KindBoolean && v.AsBoolean() {
			return nil
		}
		cmd := bson.NewDocument(
			bson.Elem{Key: "saslContinue", Value: bson.Int32(1)},
			bson.Elem{Key: "conversationId", Value: conversationID},
			bson.Elem{Key: "payload", Value: bson.Binary(0, nil)},
		)
		next, err := runner.RunCommand(cmd)
		if err != nil {
			return &AuthenticationError{Database: db, Wrapped: err}
		}
		if !commandOK(next) {
			return &AuthenticationError{Database: db, Wrapped: fmt.Errorf("saslContinue rejected")}
		}
		reply = next
	}
}

func commandOK(doc *bson.Document) bool {
	v, ok := doc.Lookup("ok")
	if !ok {
		return false
	}
	switch v.Kind() {
	case bson.KindDouble:
		return v.AsDouble() == 1
	case bson.KindInt32:
		return v.AsInt32() == 1
	case bson.KindBoolean:
		return v.AsBoolean()
	default:
		return false
	}
}

func payloadString(doc *bson.Document) (string, error) {
	v, ok := doc.Lookup("payload")
	if !ok || v.Kind() != bson.KindBinary {
		return "", fmt.Errorf("missing or malformed payload")
	}
	_, data := v.AsBinary()
	return string(data), nil
}

// parseSCRAMPayload splits a comma-separated "k=v,k=v,..." SCRAM payload
// into a map.
func parseSCRAMPayload(payload string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(payload, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed SCRAM payload segment %q", part)
		}
		out[kv[0]] = kv[1]
	}
	return out, nil
}

// encodeUsername escapes ',' and '=' per RFC 5802's saslname rule.
func encodeUsername(u string) string {
	u = strings.ReplaceAll(u, "=", "=3D")
	u = strings.ReplaceAll(u, ",", "=2C")
	return u
}

func randomNonce(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}

func hmacSHA1(key []byte, msg string) []byte {
	h := hmac.New(sha1.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

func sha1Sum(b []byte) []byte {
	sum := sha1.Sum(b)
	return sum[:]
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
