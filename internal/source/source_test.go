package source

import (
	"context"
	"errors"
	"testing"
)

type nopConn struct{ Conn }

func TestRegisterAndOpen(t *testing.T) {
	stub := func(ctx context.Context, cfg Config) (Conn, error) {
		return nopConn{}, nil
	}
	Register("stub", stub)

	c, err := Open(context.Background(), Config{Kind: "stub"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c == nil {
		t.Fatal("Open returned nil Conn")
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Error("expected error for missing kind")
	}
	if _, err := Open(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Error("expected error for unregistered kind")
	}
}

func TestOpenPropagatesFactoryError(t *testing.T) {
	boom := errors.New("boom")
	Register("failing", func(ctx context.Context, cfg Config) (Conn, error) {
		return nil, boom
	})
	if _, err := Open(context.Background(), Config{Kind: "failing"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want factory error", err)
	}
}

func TestRegisterPanics(t *testing.T) {
	mustPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		f()
	}

	mustPanic("empty kind", func() {
		Register("", func(ctx context.Context, cfg Config) (Conn, error) { return nil, nil })
	})
	mustPanic("nil factory", func() { Register("nilfactory", nil) })
	mustPanic("duplicate", func() {
		f := func(ctx context.Context, cfg Config) (Conn, error) { return nil, nil }
		Register("dup", f)
		Register("dup", f)
	})
}
