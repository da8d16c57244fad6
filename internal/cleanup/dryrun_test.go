package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"dirsweep/internal/config"
	"dirsweep/internal/database"
	"dirsweep/internal/fsops"
	"dirsweep/internal/metrics"
	"dirsweep/internal/safety"
)

func init() {
	// Initialize metrics once for all tests
	metrics.Init()
}

const fakeRoot = "/dirsweep-fake/scratch"

func mutations(calls []string) []string {
	var out []string
	for _, c := range calls {
		if strings.HasPrefix(c, "rm:") || strings.HasPrefix(c, "rmdir:") || strings.HasPrefix(c, "chmod:") {
			out = append(out, c)
		}
	}
	return out
}

// TestDryRunNeverDeletes proves the dry-run contract:
// When dryRun=true, ZERO mutating calls must reach the filesystem
func TestDryRunNeverDeletes(t *testing.T) {
	fake := fsops.NewFakeFileSystem()
	fake.AddFile(fakeRoot+"/file1.txt", 1024)
	fake.AddDir(fakeRoot + "/emptydir")
	fake.AddFile(fakeRoot+"/fulldir/a.bin", 2048)
	fake.SetReadOnly(fakeRoot+"/file1.txt", true)

	cfg := &config.Config{
		Targets: []config.Target{{Path: fakeRoot, Options: []string{"override-read-only"}}},
	}

	sweeper := NewSweeper(nil, nil, true) // dryRun=true
	sweeper.SetFileSystem(fake)
	sweeper.SetValidator(safety.NewValidator([]string{fakeRoot}, nil))

	summary, err := sweeper.SweepWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SweepWithConfig failed: %v", err)
	}

	// DRY-RUN CONTRACT: Assert ZERO mutating calls occurred
	if got := mutations(fake.Calls()); len(got) != 0 {
		t.Errorf("DRY-RUN VIOLATION: Expected 0 mutating calls, got %d: %v", len(got), got)
	}
	if !fake.Exists(fakeRoot + "/fulldir/a.bin") {
		t.Error("DRY-RUN VIOLATION: file removed")
	}

	// The counts still describe what a real sweep would delete
	res := summary.Results[0]
	if res.Action != database.ActionDryRun {
		t.Errorf("Expected action %s, got %s", database.ActionDryRun, res.Action)
	}
	if res.Counters.Directories != 3 || res.Counters.Files != 2 || res.Counters.Bytes != 3072 {
		t.Errorf("Unexpected counters %v", res.Counters)
	}
}

func targetBytesDeleted(t *testing.T, target string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := metrics.TargetBytesDeletedTotal.WithLabelValues(target).Write(m); err != nil {
		t.Fatalf("read metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// TestDryRunLeavesDeletionMetrics proves a dry run reports bytes it would
// free without adding them to the deleted byte totals
func TestDryRunLeavesDeletionMetrics(t *testing.T) {
	const root = "/dirsweep-fake/preview"
	fake := fsops.NewFakeFileSystem()
	fake.AddFile(root+"/big.bin", 4096)

	cfg := &config.Config{Targets: []config.Target{{Path: root}}}

	sweeper := NewSweeper(nil, nil, true)
	sweeper.SetFileSystem(fake)
	sweeper.SetValidator(safety.NewValidator([]string{root}, nil))

	before := targetBytesDeleted(t, root)
	summary, err := sweeper.SweepWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SweepWithConfig failed: %v", err)
	}

	if got := summary.Total().Bytes; got != 4096 {
		t.Errorf("Expected dry run to report 4096 bytes, got %d", got)
	}
	if after := targetBytesDeleted(t, root); after != before {
		t.Errorf("Dry run changed deleted bytes metric: before=%v after=%v", before, after)
	}
	if !fake.Exists(root + "/big.bin") {
		t.Error("DRY-RUN VIOLATION: file removed")
	}
}

// TestRealModeDeletes proves that non-dry-run mode does remove the tree
func TestRealModeDeletes(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "scratch")
	if err := os.MkdirAll(filepath.Join(target, "sub"), 0o755); err != nil {
		t.Fatalf("Failed to create test dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(target, "sub", "file1.txt"), []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	cfg := &config.Config{Targets: []config.Target{{Path: target}}}

	sweeper := NewSweeper(nil, nil, false) // dryRun=false
	sweeper.SetValidator(safety.NewValidator([]string{tmpDir}, nil))

	summary, err := sweeper.SweepWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SweepWithConfig failed: %v", err)
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("Expected target to be removed, stat returned %v", err)
	}
	if got := summary.Count(database.ActionDelete); got != 1 {
		t.Errorf("Expected 1 deleted target, got %d", got)
	}
	if total := summary.Total(); total.Files != 1 || total.Bytes != 4 || total.Directories != 2 {
		t.Errorf("Unexpected totals %v", total)
	}
}

// TestSafetyValidatorBlocksDeletion proves validator integration works
func TestSafetyValidatorBlocksDeletion(t *testing.T) {
	tmpDir := t.TempDir()

	fake := fsops.NewFakeFileSystem()
	fake.AddFile("/etc/passwd", 1024)

	cfg := &config.Config{Targets: []config.Target{{Path: "/etc"}}}

	sweeper := NewSweeper(nil, nil, false) // Real mode
	sweeper.SetFileSystem(fake)
	sweeper.SetValidator(safety.NewValidator([]string{tmpDir}, nil))

	summary, err := sweeper.SweepWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SweepWithConfig failed: %v", err)
	}

	// Assert validator blocked the walk before any filesystem call
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("SAFETY VIOLATION: Validator should have blocked protected path, but got %d calls: %v",
			len(calls), calls)
	}

	res := summary.Results[0]
	if res.Action != database.ActionSkip || res.Reason != ReasonUnsafePath {
		t.Errorf("Expected SKIP %s, got %s %s", ReasonUnsafePath, res.Action, res.Reason)
	}
	if summary.Err() == nil {
		t.Error("Expected the rejection to surface in the summary error")
	}
}
