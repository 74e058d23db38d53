package runner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	sberrors "judgesandbox/errors"
)

// ============================================================================
// RESOURCE LIMIT VALIDATION
// ============================================================================

func TestResourceLimit_Validate_EqualBudgetIsValid(t *testing.T) {
	l := ResourceLimit{CPUTime: time.Second, RealTime: time.Second, MemoryBytes: 1}
	if err := l.Validate(); err != nil {
		t.Errorf("cpu_time == real_time should be valid, got %v", err)
	}
}

func TestResourceLimit_Validate_CPUTimeExceedsRealTime(t *testing.T) {
	l := ResourceLimit{CPUTime: 2 * time.Second, RealTime: time.Second, MemoryBytes: 1}
	if err := l.Validate(); !sberrors.IsKind(err, sberrors.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestResourceLimit_Validate_ZeroCPUTime(t *testing.T) {
	l := ResourceLimit{CPUTime: 0, RealTime: time.Second, MemoryBytes: 1}
	if err := l.Validate(); err == nil {
		t.Error("expected error for zero cpu_time")
	}
}

func TestResourceLimit_Validate_ZeroMemory(t *testing.T) {
	l := ResourceLimit{CPUTime: time.Second, RealTime: time.Second, MemoryBytes: 0}
	if err := l.Validate(); !sberrors.IsKind(err, sberrors.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

// ============================================================================
// SPEC CONSTRUCTION
// ============================================================================

func TestNew_RejectsInvalidLimit(t *testing.T) {
	_, err := New("/bin/sh", "/dev/null", "/dev/null", ResourceLimit{})
	if err == nil {
		t.Error("expected error constructing Spec with zero-value limit")
	}
}

func TestWithChroot_RejectsMissingPath(t *testing.T) {
	s, err := New("/bin/sh", "/dev/null", "/dev/null", ResourceLimit{CPUTime: time.Second, RealTime: time.Second, MemoryBytes: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.WithChroot("/no/such/directory"); !sberrors.IsKind(err, sberrors.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestWithChroot_AcceptsExistingDirectory(t *testing.T) {
	s, err := New("/bin/sh", "/dev/null", "/dev/null", ResourceLimit{CPUTime: time.Second, RealTime: time.Second, MemoryBytes: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.WithChroot(t.TempDir()); err != nil {
		t.Errorf("WithChroot on an existing directory should not fail: %v", err)
	}
}

// ============================================================================
// SINGLE-USE ENFORCEMENT
// ============================================================================

func TestRun_RejectsReuse(t *testing.T) {
	requireRoot(t)

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in")
	outputPath := filepath.Join(dir, "out")
	if err := os.WriteFile(inputPath, nil, 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	s, err := New("/bin/true", inputPath, outputPath, ResourceLimit{CPUTime: time.Second, RealTime: time.Second, MemoryBytes: 64 * 1024 * 1024})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.WithCgroupRoot(t.TempDir())

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	if _, err := s.Run(context.Background()); !sberrors.IsKind(err, sberrors.ErrSandbox) {
		t.Errorf("second Run should fail with ErrSandbox, got %v", err)
	}
}

// ============================================================================
// EXIT CLASSIFICATION
// ============================================================================

func TestClassifyExit_NilErrorIsSuccess(t *testing.T) {
	ok, err := classifyExit(nil)
	if err != nil || !ok {
		t.Errorf("classifyExit(nil) = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestClassifyExit_NonExitErrorIsWaitFailed(t *testing.T) {
	_, err := classifyExit(context.DeadlineExceeded)
	if !sberrors.Is(err, sberrors.ErrWaitFailed) {
		t.Errorf("expected ErrWaitFailed, got %v", err)
	}
}

func TestClassifyExit_NonZeroExitIsFailure(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 3")
	waitErr := cmd.Run()
	ok, err := classifyExit(waitErr)
	if err != nil {
		t.Fatalf("classifyExit failed: %v", err)
	}
	if ok {
		t.Error("exit code 3 should classify as failure")
	}
}

// ============================================================================
// END-TO-END SCENARIOS (require root: user namespaces + cgroup v1 mounts)
// ============================================================================

func requireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root to create user/pid/mount namespaces and write cgroup v1 files")
	}
	if _, err := os.Stat("/sys/fs/cgroup/cpu"); err != nil {
		t.Skip("cgroup v1 cpu controller not mounted")
	}
}

func TestRun_BasicEcho(t *testing.T) {
	requireRoot(t)

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in")
	outputPath := filepath.Join(dir, "out")
	if err := os.WriteFile(inputPath, nil, 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	s, err := New("/bin/echo", inputPath, outputPath, ResourceLimit{
		CPUTime:     time.Second,
		RealTime:    2 * time.Second,
		MemoryBytes: 64 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.WithCgroupRoot(t.TempDir())

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.ExitSuccess {
		t.Error("expected exit success")
	}
}

func TestRun_ReportsResourceUsage(t *testing.T) {
	requireRoot(t)

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in")
	outputPath := filepath.Join(dir, "out")
	if err := os.WriteFile(inputPath, nil, 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	s, err := New("/bin/sh", inputPath, outputPath, ResourceLimit{
		CPUTime:     2 * time.Second,
		RealTime:    2 * time.Second,
		MemoryBytes: 64 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.WithCgroupRoot(t.TempDir())

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Usage.RealTime <= 0 {
		t.Error("expected positive real_time")
	}
}

func TestRun_Chroot(t *testing.T) {
	requireRoot(t)

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in")
	outputPath := filepath.Join(dir, "out")
	if err := os.WriteFile(inputPath, nil, 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	s, err := New("/bin/true", inputPath, outputPath, ResourceLimit{
		CPUTime:     time.Second,
		RealTime:    2 * time.Second,
		MemoryBytes: 64 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.WithChroot("/"); err != nil {
		t.Fatalf("WithChroot failed: %v", err)
	}
	s.WithCgroupRoot(t.TempDir())

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.ExitSuccess {
		t.Error("expected exit success under chroot(\"/\")")
	}
}

func TestRun_SeccompBlocksExec(t *testing.T) {
	requireRoot(t)
	if _, err := os.Stat("/usr/bin/true"); err != nil {
		t.Skip("/usr/bin/true not present")
	}

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in")
	outputPath := filepath.Join(dir, "out")
	if err := os.WriteFile(inputPath, nil, 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	// A program that shells out to a second binary must be killed: the
	// seccomp filter only allows execve of the original program path.
	script := filepath.Join(dir, "script.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexec /usr/bin/true\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	s, err := New(script, inputPath, outputPath, ResourceLimit{
		CPUTime:     time.Second,
		RealTime:    2 * time.Second,
		MemoryBytes: 64 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.WithSeccomp(true)
	s.WithCgroupRoot(t.TempDir())

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.ExitSuccess {
		t.Error("expected the re-exec to /usr/bin/true to be killed by seccomp")
	}
}

func TestRun_StdinStdoutWiring(t *testing.T) {
	requireRoot(t)

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in")
	outputPath := filepath.Join(dir, "out")
	if err := os.WriteFile(inputPath, []byte("hello, world\n"), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	s, err := New("/bin/cat", inputPath, outputPath, ResourceLimit{
		CPUTime:     time.Second,
		RealTime:    2 * time.Second,
		MemoryBytes: 64 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.WithCgroupRoot(t.TempDir())

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.ExitSuccess {
		t.Fatal("expected exit success")
	}

	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Equal(got, []byte("hello, world\n")) {
		t.Errorf("output = %q, want %q", got, "hello, world\n")
	}
}
