package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gpr/internal/stats"
	"gpr/pkg/gpr"
)

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}

func smallRunArgs(extra ...string) []string {
	args := []string{
		"run",
		"--scape", "quadratic",
		"--pop", "6",
		"--gens", "3",
		"--islands", "2",
		"--migration-interval", "2",
		"--seed", "11",
		"--workers", "2",
		"--log-level", "error",
	}
	return append(args, extra...)
}

func TestRunCommandCreatesArtifacts(t *testing.T) {
	chdirTest(t, t.TempDir())

	out, err := captureStdout(func() error {
		return run(context.Background(), smallRunArgs())
	})
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out, "run_id=") || !strings.Contains(out, "best=") {
		t.Fatalf("unexpected run output: %q", out)
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	runID := entries[0].RunID
	for _, file := range []string{"config.json", "fitness_history.json", "fitness_history.csv", "top_genomes.json", "generation_diagnostics.json", "summary.json"} {
		path := filepath.Join(artifactsDir, runID, file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}
}

func TestRunCommandJSONAndQueries(t *testing.T) {
	chdirTest(t, t.TempDir())
	ctx := context.Background()

	out, err := captureStdout(func() error {
		return run(ctx, smallRunArgs("--json", "--encoding", "graph", "--instructions", "default"))
	})
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	var summary gpr.RunSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode run summary: %v\n%s", err, out)
	}
	if summary.Encoding != "graph" || len(summary.BestByGeneration) != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	out, err = captureStdout(func() error { return run(ctx, []string{"runs"}) })
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out, "run_id="+summary.RunID) || !strings.Contains(out, "encoding=graph") {
		t.Fatalf("unexpected runs output: %q", out)
	}

	out, err = captureStdout(func() error { return run(ctx, []string{"history", "--latest"}) })
	if err != nil {
		t.Fatalf("history command: %v", err)
	}
	if got := strings.Count(out, "\n"); got != 6 {
		t.Fatalf("expected 6 history rows, got %d: %q", got, out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"diagnostics", "--run-id", summary.RunID, "--islands", "1"})
	})
	if err != nil {
		t.Fatalf("diagnostics command: %v", err)
	}
	if strings.Contains(out, "island=0") || strings.Count(out, "island=1") != 3 {
		t.Fatalf("unexpected diagnostics output: %q", out)
	}

	out, err = captureStdout(func() error { return run(ctx, []string{"top", "--latest", "--limit", "1"}) })
	if err != nil {
		t.Fatalf("top command: %v", err)
	}
	if !strings.HasPrefix(out, "rank=1 ") || strings.Count(out, "rank=") != 1 {
		t.Fatalf("unexpected top output: %q", out)
	}

	out, err = captureStdout(func() error { return run(ctx, []string{"show", "--latest", "--rescore"}) })
	if err != nil {
		t.Fatalf("show command: %v", err)
	}
	for _, want := range []string{"genome_id=" + summary.BestGenomeID, "mode=gt", "mode=validation", "mode=test"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q: %q", want, out)
		}
	}

	// Each command opens a fresh memory store, so store-only views are empty.
	out, err = captureStdout(func() error { return run(ctx, []string{"genomes", "--latest"}) })
	if err != nil || !strings.HasPrefix(out, "no stored genomes") {
		t.Fatalf("genomes command: %v %q", err, out)
	}
	if _, err := captureStdout(func() error { return run(ctx, []string{"population", "--latest"}) }); err == nil {
		t.Fatal("expected missing snapshot error from a fresh memory store")
	}

	out, err = captureStdout(func() error { return run(ctx, []string{"export", "--latest"}) })
	if err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportsDir, summary.RunID, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v (%q)", err, out)
	}
}

func TestRunCommandReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdirTest(t, dir)
	cfg := []byte("generations: 2\nseed: 5\nevolution:\n  islands: 1\n  population_size: 4\n  workers: 1\n")
	if err := os.WriteFile(filepath.Join(dir, "run.yaml"), cfg, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// -gens on the command line wins over the file.
	if _, err := captureStdout(func() error {
		return run(context.Background(), []string{"run", "--config", "run.yaml", "--gens", "3", "--log-level", "error"})
	}); err != nil {
		t.Fatalf("run command: %v", err)
	}

	rc, ok, err := stats.ReadRunConfig(artifactsDir, mustLatestRun(t))
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if rc.Generations != 3 || rc.Seed != 5 || rc.Islands != 1 || rc.PopulationSize != 4 {
		t.Fatalf("unexpected persisted config: %+v", rc)
	}
}

func TestCommandErrors(t *testing.T) {
	chdirTest(t, t.TempDir())
	ctx := context.Background()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing command", args: nil, want: "missing command"},
		{name: "unknown command", args: []string{"benchmark"}, want: "unknown command"},
		{name: "both selectors", args: []string{"top", "--run-id", "x", "--latest"}, want: "not both"},
		{name: "no selector", args: []string{"history"}, want: "requires --run-id or --latest"},
		{name: "bad islands", args: []string{"diagnostics", "--latest", "--islands", "a"}, want: "invalid island"},
		{name: "bad log level", args: []string{"run", "--log-level", "loud"}, want: "invalid log level"},
		{name: "unknown scape", args: smallRunArgs("--scape", "pole-balancing"), want: "pole-balancing"},
		{name: "equation only", args: smallRunArgs("--equation-only", "--instructions", "dynamic"), want: "equation_only"},
		{name: "no runs", args: []string{"export", "--latest"}, want: "no runs available"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := captureStdout(func() error { return run(ctx, tc.args) })
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestScapesCommandListsRegistry(t *testing.T) {
	out, err := captureStdout(func() error { return run(context.Background(), []string{"scapes"}) })
	if err != nil {
		t.Fatalf("scapes command: %v", err)
	}
	for _, name := range []string{"xor", "quadratic", "regression-mimic"} {
		if !strings.Contains(out, name+"\n") {
			t.Fatalf("scapes output missing %s: %q", name, out)
		}
	}
}

func mustLatestRun(t *testing.T) string {
	t.Helper()
	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no runs indexed")
	}
	return entries[0].RunID
}

// chdirTest changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdirTest(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
