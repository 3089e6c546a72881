package logger

import (
	"errors"
	"testing"
)

type recordingSink struct {
	infos  []string
	errors []string
}

func (s *recordingSink) Info(level int, msg string, keysAndValues ...interface{}) {
	s.infos = append(s.infos, msg)
}

func (s *recordingSink) Error(err error, msg string, keysAndValues ...interface{}) {
	s.errors = append(s.errors, msg)
}

func TestLoggerEnabled(t *testing.T) {
	l := New(&recordingSink{}, map[Component]Level{ComponentCommand: LevelDebug})

	if !l.Enabled(ComponentCommand, LevelInfo) {
		t.Fatal("expected Info to be enabled under a Debug-configured component")
	}
	if !l.Enabled(ComponentCommand, LevelDebug) {
		t.Fatal("expected Debug to be enabled under a Debug-configured component")
	}
	if l.Enabled(ComponentTopology, LevelInfo) {
		t.Fatal("expected an unconfigured component to be disabled")
	}
}

func TestLoggerPrintSkipsWhenDisabled(t *testing.T) {
	sink := &recordingSink{}
	l := New(sink, map[Component]Level{ComponentCommand: LevelInfo})

	l.Print(ComponentCommand, LevelDebug, CommandStartedMessage{CommandName: "find"})
	if len(sink.infos) != 0 {
		t.Fatalf("expected no dispatch at a level above the configured one, got %v", sink.infos)
	}

	l.Print(ComponentCommand, LevelInfo, CommandStartedMessage{CommandName: "find"})
	if len(sink.infos) != 1 || sink.infos[0] != "Command started" {
		t.Fatalf("expected one dispatch, got %v", sink.infos)
	}
}

func TestLoggerErrorBypassesLevelButNotOff(t *testing.T) {
	sink := &recordingSink{}
	l := New(sink, map[Component]Level{ComponentCommand: LevelInfo, ComponentConnection: LevelOff})

	l.Error(ComponentCommand, errors.New("boom"), CommandFailedMessage{CommandName: "find"})
	if len(sink.errors) != 1 {
		t.Fatalf("expected error to be logged despite being above Info, got %v", sink.errors)
	}

	l.Error(ComponentConnection, errors.New("boom"), CommandFailedMessage{CommandName: "find"})
	if len(sink.errors) != 1 {
		t.Fatal("expected no dispatch for a component configured Off")
	}
}

func TestLoggerTruncate(t *testing.T) {
	l := New(&recordingSink{}, nil)
	l.maxDocumentLength = 5

	if got := l.Truncate("hello"); got != "hello" {
		t.Fatalf("expected exact-length input unchanged, got %q", got)
	}
	if got := l.Truncate("hello world"); got != "hello..." {
		t.Fatalf("expected truncation with ellipsis, got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":      LevelOff,
		"off":   LevelOff,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"DEBUG": LevelDebug,
		"bogus": LevelOff,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
