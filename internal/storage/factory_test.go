package storage

import (
	"errors"
	"testing"
)

func TestNewStoreMemoryAliases(t *testing.T) {
	for _, kind := range []string{"", "memory", " MEM "} {
		store, err := NewStore(kind, "")
		if err != nil {
			t.Fatalf("new store %q: %v", kind, err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Fatalf("store %q: expected memory store, got %T", kind, store)
		}
		if err := CloseIfSupported(store); err != nil {
			t.Fatalf("close memory store: %v", err)
		}
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("postgres", "")
	if !errors.Is(err, ErrUnsupportedBackend) {
		t.Fatalf("expected ErrUnsupportedBackend, got %v", err)
	}
}

func TestPopulationID(t *testing.T) {
	if got := PopulationID("run-1", 3); got != "run-1/3" {
		t.Fatalf("unexpected population id %q", got)
	}
}
