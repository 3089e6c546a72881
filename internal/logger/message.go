package logger

import "fmt"

// ComponentMessage is anything that can render itself into the key/value
// pairs a LogSink consumes, keeping the logger package itself free of any
// knowledge of command documents, server descriptions, or the wire codec.
type ComponentMessage interface {
	Message() string
	Keys() []interface{}
}

// CommandStartedMessage logs a command about to be written to the wire.
type CommandStartedMessage struct {
	CommandName  string
	DatabaseName string
	RequestID    int32
	ConnectionID string
}

func (m CommandStartedMessage) Message() string { return "Command started" }

func (m CommandStartedMessage) Keys() []interface{} {
	return []interface{}{
		"commandName", m.CommandName,
		"databaseName", m.DatabaseName,
		"requestId", m.RequestID,
		"connectionId", m.ConnectionID,
	}
}

// CommandSucceededMessage logs a command whose reply carried ok:1.
type CommandSucceededMessage struct {
	CommandName  string
	RequestID    int32
	ConnectionID string
	DurationMS   int64
}

func (m CommandSucceededMessage) Message() string { return "Command succeeded" }

func (m CommandSucceededMessage) Keys() []interface{} {
	return []interface{}{
		"commandName", m.CommandName,
		"requestId", m.RequestID,
		"connectionId", m.ConnectionID,
		"durationMS", m.DurationMS,
	}
}

// CommandFailedMessage logs a command that could not complete.
type CommandFailedMessage struct {
	CommandName  string
	RequestID    int32
	ConnectionID string
	DurationMS   int64
	Failure      string
}

func (m CommandFailedMessage) Message() string { return "Command failed" }

func (m CommandFailedMessage) Keys() []interface{} {
	return []interface{}{
		"commandName", m.CommandName,
		"requestId", m.RequestID,
		"connectionId", m.ConnectionID,
		"durationMS", m.DurationMS,
		"failure", m.Failure,
	}
}

// CommandMessageDropped is a message carrying only a reason for a dropped
// command/reply body. The driver does not emit it: an over-long body is
// shortened by Logger.Truncate instead.
type CommandMessageDropped struct {
	Reason string
}

func (m CommandMessageDropped) Message() string {
	return fmt.Sprintf("Extended JSON dropped: %s", m.Reason)
}

func (m CommandMessageDropped) Keys() []interface{} { return nil }
