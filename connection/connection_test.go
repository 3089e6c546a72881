package connection

import (
	"context"
	"testing"

	"github.com/coredb-io/coredb-go-driver/address"
)

func TestConnectionWriteThenReadEOF(t *testing.T) {
	c, err := Dial(context.Background(), address.Address("localhost:27017"), WithDialer(fakeDialer()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.WriteWireMessage(context.Background(), []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := c.ReadWireMessage(context.Background()); err == nil {
		t.Fatal("expected read against a connection whose fake socket always EOFs to fail")
	}
	if c.Alive() {
		t.Fatal("expected a failed read to mark the connection dead")
	}
}

func TestConnectionWriteWithCanceledContext(t *testing.T) {
	c, err := Dial(context.Background(), address.Address("localhost:27017"), WithDialer(fakeDialer()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A fake socket's Write never blocks, so this just exercises that the
	// cancellation listener starts and stops cleanly around a call whose
	// context is already canceled.
	_ = c.WriteWireMessage(ctx, []byte{1, 2, 3, 4})
}
