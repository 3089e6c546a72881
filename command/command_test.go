package command

import (
	"context"
	"testing"
	"time"

	"github.com/coredb-io/coredb-go-driver/bson"
	"github.com/coredb-io/coredb-go-driver/internal/csot"
)

func TestWithMaxTimeMSAddsFieldUnderDeadline(t *testing.T) {
	cmd := bson.NewDocument(bson.Elem{Key: "ping", Value: bson.Int32(1)})
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	out := withMaxTimeMS(ctx, cmd)
	if out == cmd {
		t.Fatal("expected a new document when a deadline is present")
	}
	v, ok := out.Lookup("maxTimeMS")
	if !ok || v.Kind() != bson.KindInt64 || v.AsInt64() <= 0 {
		t.Fatalf("expected a positive maxTimeMS field, got %+v", v)
	}
	if _, ok := cmd.Lookup("maxTimeMS"); ok {
		t.Fatal("expected the original document to be left untouched")
	}
}

func TestWithMaxTimeMSNoDeadline(t *testing.T) {
	cmd := bson.NewDocument(bson.Elem{Key: "ping", Value: bson.Int32(1)})
	out := withMaxTimeMS(context.Background(), cmd)
	if out != cmd {
		t.Fatal("expected the same document back when ctx has no deadline")
	}
}

func TestWithMaxTimeMSSkipped(t *testing.T) {
	cmd := bson.NewDocument(bson.Elem{Key: "isMaster", Value: bson.Int32(1)})
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	ctx = csot.NewSkipMaxTimeContext(ctx)

	out := withMaxTimeMS(ctx, cmd)
	if out != cmd {
		t.Fatal("expected skip-max-time context to leave the document untouched")
	}
}

type stubWireSender struct {
	writeErr error
	reply    []byte
	readErr  error
}

func (s *stubWireSender) WriteWireMessage(ctx context.Context, msg []byte) error { return s.writeErr }
func (s *stubWireSender) ReadWireMessage(ctx context.Context) ([]byte, error) {
	return s.reply, s.readErr
}

type stubIDs struct{ n int32 }

func (s *stubIDs) Next() int32 { s.n++; return s.n }

func TestRunPropagatesWriteError(t *testing.T) {
	sender := &stubWireSender{writeErr: errBoom}
	_, err := Run(context.Background(), sender, &stubIDs{}, "test", bson.NewDocument())
	if err == nil {
		t.Fatal("expected write failure to propagate")
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
