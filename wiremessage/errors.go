// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "fmt"

// ProtocolError reports a reply that violates the wire protocol's reading
// rule: a message shorter than its stated length, or an unrecognized
// opcode, per §4.3.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "wiremessage: " + e.Reason }

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}
