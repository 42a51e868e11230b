package db

import (
	"context"
	"errors"
	"testing"
)

func TestQuerierFromContext_Empty(t *testing.T) {
	if q := QuerierFromContext(context.Background()); q != nil {
		t.Errorf("expected nil querier outside a transaction, got %T", q)
	}
}

func TestNopTransactor_RunsFn(t *testing.T) {
	called := false
	err := NopTransactor{}.InTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to be called")
	}
}

func TestNopTransactor_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := NopTransactor{}.InTx(context.Background(), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}
