//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSQLiteStoreViewsSurviveAcrossCommands(t *testing.T) {
	dir := t.TempDir()
	chdirTest(t, dir)
	ctx := context.Background()
	dbPath := filepath.Join(dir, "gpr.db")

	if _, err := captureStdout(func() error {
		return run(ctx, smallRunArgs("--store", "sqlite", "--db-path", dbPath))
	}); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	out, err := captureStdout(func() error {
		return run(ctx, []string{"population", "--latest", "--island", "1", "--store", "sqlite", "--db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("population command: %v", err)
	}
	if !strings.Contains(out, "island=1") || strings.Count(out, "rank=") != 6 {
		t.Fatalf("unexpected population output: %q", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"genomes", "--latest", "--limit", "4", "--store", "sqlite", "--db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("genomes command: %v", err)
	}
	if strings.Count(out, "rank=") != 4 {
		t.Fatalf("unexpected genomes output: %q", out)
	}

	// The store remembers the run even when the index is gone.
	if err := os.Remove(filepath.Join(artifactsDir, "run_index.json")); err != nil {
		t.Fatalf("remove run index: %v", err)
	}
	out, err = captureStdout(func() error {
		return run(ctx, []string{"runs", "--store", "sqlite", "--db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if strings.Count(out, "run_id=") != 1 {
		t.Fatalf("unexpected runs output: %q", out)
	}
}
