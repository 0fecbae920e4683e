package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLockerExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	release, err := l.Acquire(ctx, "migration", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "migration", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if _, err := l.Acquire(ctx, "other", time.Minute); err != nil {
		t.Fatalf("expected independent lock names, got %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "migration", time.Minute); err != nil {
		t.Fatalf("expected lock free after release, got %v", err)
	}
}

func TestMemoryLockerExpires(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "migration", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := l.Acquire(ctx, "migration", time.Minute); err != nil {
		t.Fatalf("expected expired lock to be reacquired, got %v", err)
	}

	// The stale holder must not release the new holder's lock.
	_ = stale(ctx)
	if _, err := l.Acquire(ctx, "migration", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected lock still held, got %v", err)
	}
}
