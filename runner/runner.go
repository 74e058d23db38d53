// Package runner is the sandboxed executor: it forks (via re-exec) a child
// into fresh namespaces, attaches it to a cgroup, installs a seccomp filter,
// and enforces a wall-clock timeout, producing a resource usage report.
package runner

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"judgesandbox/cgroup"
	sberrors "judgesandbox/errors"
	"judgesandbox/logging"
	"judgesandbox/metrics"
)

// ResourceLimit bounds one run: cpu_time must not exceed real_time, and
// memory_bytes must be positive.
type ResourceLimit struct {
	CPUTime     time.Duration
	RealTime    time.Duration
	MemoryBytes int64
}

// Validate checks the invariant 0 < cpu_time <= real_time and
// memory_bytes > 0.
func (l ResourceLimit) Validate() error {
	if l.CPUTime <= 0 || l.CPUTime > l.RealTime {
		return sberrors.WrapWithDetail(sberrors.ErrInvalidLimit, sberrors.ErrConfiguration, "ResourceLimit.Validate", "require 0 < cpu_time <= real_time")
	}
	if l.MemoryBytes <= 0 {
		return sberrors.WrapWithDetail(sberrors.ErrInvalidLimit, sberrors.ErrConfiguration, "ResourceLimit.Validate", "require memory_bytes > 0")
	}
	return nil
}

// ResourceUsage reports what a run actually consumed.
type ResourceUsage struct {
	CPUTime     time.Duration
	RealTime    time.Duration
	MemoryBytes int64
}

// RunnerReport is the outcome of one Run.
type RunnerReport struct {
	ExitSuccess bool
	Usage       ResourceUsage
}

// Spec configures a single sandboxed execution. A Spec is single-use: Run
// may be called at most once.
type Spec struct {
	ProgramPath string
	InputPath   string
	OutputPath  string
	Limit       ResourceLimit

	chroot      string
	seccomp     bool
	cgroupRoot  string
	usedAlready bool
}

// New creates a Spec after validating limit.
func New(programPath, inputPath, outputPath string, limit ResourceLimit) (*Spec, error) {
	if err := limit.Validate(); err != nil {
		return nil, err
	}
	return &Spec{
		ProgramPath: programPath,
		InputPath:   inputPath,
		OutputPath:  outputPath,
		Limit:       limit,
	}, nil
}

// WithChroot configures the run to chroot into path before exec. The path
// is validated to exist now, rather than letting the child die with a
// non-obvious error after fork.
func (s *Spec) WithChroot(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return sberrors.WrapWithDetail(sberrors.ErrChrootNotExist, sberrors.ErrConfiguration, "Spec.WithChroot", path)
	}
	s.chroot = path
	return nil
}

// WithSeccomp enables or disables installing the canonical execve-pointer
// filter in the child.
func (s *Spec) WithSeccomp(enabled bool) {
	s.seccomp = enabled
}

// WithCgroupRoot overrides the cgroup v1 mount root (cgroup.DefaultRoot if
// never called).
func (s *Spec) WithCgroupRoot(root string) {
	s.cgroupRoot = root
}

// Run executes the program once. It is an error to call Run more than once
// on the same Spec.
func (s *Spec) Run(ctx context.Context) (*RunnerReport, error) {
	log := logging.WithOperation(logging.FromContext(ctx), "run")

	if s.usedAlready {
		return nil, sberrors.ErrRunnerReused
	}
	s.usedAlready = true

	if s.chroot != "" {
		if _, err := os.Stat(s.chroot); err != nil {
			return nil, sberrors.WrapWithDetail(sberrors.ErrChrootNotExist, sberrors.ErrConfiguration, "Spec.Run", s.chroot)
		}
	}

	cg := cgroup.New(s.cgroupRoot)
	defer cg.Close()

	if err := cg.Initialize(ctx, cgroup.CPU, cgroup.CPUAcct, cgroup.Memory); err != nil {
		return nil, sberrors.Wrap(err, sberrors.ErrIO, "Spec.Run")
	}

	period, quota := cgroup.PeriodQuotaForRatio(s.Limit.CPUTime, s.Limit.RealTime)
	if err := cg.SetCPUQuota(period, quota); err != nil {
		return nil, sberrors.Wrap(err, sberrors.ErrIO, "Spec.Run")
	}
	if err := cg.SetMemoryLimit(s.Limit.MemoryBytes); err != nil {
		return nil, sberrors.Wrap(err, sberrors.ErrIO, "Spec.Run")
	}

	inputFile, err := os.Open(s.InputPath)
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.ErrIO, "Spec.Run")
	}
	defer inputFile.Close()

	outputFile, err := os.Create(s.OutputPath)
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.ErrIO, "Spec.Run")
	}
	defer outputFile.Close()

	self, err := os.Executable()
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.ErrSandbox, "Spec.Run")
	}

	cmd := exec.Command(self, childArg)
	cmd.Stdin = inputFile
	cmd.Stdout = outputFile
	cmd.Stderr = os.Stderr
	cmd.Env = []string{
		envProgram + "=" + s.ProgramPath,
		envChroot + "=" + s.chroot,
		envSeccomp + "=" + strconv.FormatBool(s.seccomp),
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: namespaceFlags(),
	}

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, sberrors.WrapWithDetail(sberrors.ErrForkFailed, sberrors.ErrSandbox, "Spec.Run", err.Error())
	}

	log = logging.WithPID(log, cmd.Process.Pid)

	if err := cg.AddProcess(cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, sberrors.Wrap(err, sberrors.ErrIO, "Spec.Run")
	}

	cancelKiller := make(chan struct{})
	go wallClockKiller(cmd.Process.Pid, s.Limit.RealTime, cancelKiller)

	waitErr := cmd.Wait()
	close(cancelKiller)
	realTime := time.Since(startTime)

	exitSuccess, err := classifyExit(waitErr)
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.ErrSandbox, "Spec.Run")
	}

	cpuTime, err := cg.CPUUsage()
	if err != nil {
		log.Warn("failed to read cpu usage", "error", err)
	}
	memBytes, err := cg.MaxMemoryUsage()
	if err != nil {
		log.Warn("failed to read memory usage", "error", err)
	}

	metrics.ObserveRun(realTime, cpuTime, exitSuccess)
	log.Info("run finished", "exit_success", exitSuccess, "real_time", realTime, "cpu_time", cpuTime)

	return &RunnerReport{
		ExitSuccess: exitSuccess,
		Usage: ResourceUsage{
			CPUTime:     cpuTime,
			RealTime:    realTime,
			MemoryBytes: memBytes,
		},
	}, nil
}

// wallClockKiller sends SIGKILL to pid after d, unless cancel is closed
// first. It is the only auxiliary goroutine running while the child runs.
func wallClockKiller(pid int, d time.Duration, cancel <-chan struct{}) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		syscall.Kill(pid, syscall.SIGKILL)
	case <-cancel:
	}
}

// classifyExit turns cmd.Wait's error into exit_success per the spec's
// Exited/Signaled/other trichotomy. A nil error means exit code 0.
func classifyExit(waitErr error) (bool, error) {
	if waitErr == nil {
		return true, nil
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		if exitErr.ProcessState.Exited() {
			return exitErr.ProcessState.ExitCode() == 0, nil
		}
		// Killed by a signal (e.g. the wall-clock killer, or seccomp's
		// default kill action).
		return false, nil
	}
	return false, sberrors.ErrWaitFailed
}
