package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatehouse-dev/gatehouse/pkg/sessions"
)

func TestSaveAndLoad(t *testing.T) {
	s := New()
	ctx := context.Background()

	data := map[string]any{"user": "u1", "count": 2}
	if err := s.Save(ctx, "sess-1", data, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got["user"] != "u1" {
		t.Errorf("user = %v, want u1", got["user"])
	}
	// Numbers come back as float64 after the JSON round trip.
	if got["count"] != float64(2) {
		t.Errorf("count = %v (%T), want 2", got["count"], got["count"])
	}
}

func TestLoadNotFound(t *testing.T) {
	s := New()
	_, err := s.Load(context.Background(), "missing")
	if !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, "sess-1", map[string]any{"k": "v"}, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	first, _ := s.Load(ctx, "sess-1")
	first["k"] = "mutated"

	second, err := s.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if second["k"] != "v" {
		t.Errorf("expected stored data isolated from caller mutation, got %v", second["k"])
	}
}

func TestExpiredSessionBehavesAsAbsent(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, "sess-1", map[string]any{"k": "v"}, -time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := s.Load(ctx, "sess-1")
	if !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected lazy removal on load, Len = %d", s.Len())
	}
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, "sess-1", map[string]any{}, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Load(ctx, "sess-1"); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent session is not an error.
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("unexpected error deleting absent session: %v", err)
	}
}

func TestSweep(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, "live", map[string]any{}, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "dead-1", map[string]any{}, -time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "dead-2", map[string]any{}, -time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if removed := s.Sweep(); removed != 2 {
		t.Errorf("Sweep removed %d, want 2", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}
