package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"judgesandbox/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <executable> <input-file> <output-file>",
	Short: "Run a compiled executable inside the sandbox against one test case",
	Args:  cobra.ExactArgs(3),
	RunE:  runRun,
}

var (
	runCPU         time.Duration
	runReal        time.Duration
	runMemBytes    int64
	runChroot      string
	runSeccomp     bool
	runInteractive bool
	runCgroupRoot  string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVar(&runCPU, "cpu", time.Second, "cpu time limit")
	runCmd.Flags().DurationVar(&runReal, "real", 2*time.Second, "wall-clock time limit")
	runCmd.Flags().Int64Var(&runMemBytes, "mem-bytes", 16*1024*1024, "memory limit in bytes")
	runCmd.Flags().StringVar(&runChroot, "chroot", "", "directory to chroot into before exec")
	runCmd.Flags().BoolVar(&runSeccomp, "seccomp", false, "install the canonical execve-pointer seccomp filter")
	runCmd.Flags().BoolVar(&runInteractive, "interactive", false, "read input-file \"-\" from this terminal in raw mode before running")
	runCmd.Flags().StringVar(&runCgroupRoot, "cgroup-root", "", "cgroup v1 mount root (defaults to the judgehost config file's cgroup_root)")
}

// captureInteractiveInput copies the operator's own stdin into a temp file
// for use as the run's input_file, putting the terminal in raw mode for the
// duration of the copy if stdin is a TTY. This exists for manual debugging
// sessions only: a run's actual input/output is always files, never a live
// terminal (see runner.Spec.Run).
func captureInteractiveInput() (string, error) {
	fd := int(os.Stdin.Fd())

	var oldState *term.State
	if term.IsTerminal(fd) {
		var err error
		oldState, err = term.MakeRaw(fd)
		if err != nil {
			return "", err
		}
		defer term.Restore(fd, oldState)
	}

	f, err := os.CreateTemp("", "judgehost-stdin-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, os.Stdin); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func runRun(cmd *cobra.Command, args []string) error {
	programPath, inputPath, outputPath := args[0], args[1], args[2]

	if runInteractive && inputPath == "-" {
		captured, err := captureInteractiveInput()
		if err != nil {
			return err
		}
		defer os.Remove(captured)
		inputPath = captured
	}

	spec, err := runner.New(programPath, inputPath, outputPath, runner.ResourceLimit{
		CPUTime:     runCPU,
		RealTime:    runReal,
		MemoryBytes: runMemBytes,
	})
	if err != nil {
		return err
	}

	if runChroot != "" {
		if err := spec.WithChroot(runChroot); err != nil {
			return err
		}
	}
	spec.WithSeccomp(runSeccomp)

	cgroupRoot := runCgroupRoot
	if cgroupRoot == "" {
		cgroupRoot = hostConfig.CgroupRoot
	}
	spec.WithCgroupRoot(cgroupRoot)

	report, err := spec.Run(cmdContext)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ExitSuccess bool          `json:"exit_success"`
		CPUTime     time.Duration `json:"cpu_time"`
		RealTime    time.Duration `json:"real_time"`
		MemoryBytes int64         `json:"memory_bytes"`
	}{
		ExitSuccess: report.ExitSuccess,
		CPUTime:     report.Usage.CPUTime,
		RealTime:    report.Usage.RealTime,
		MemoryBytes: report.Usage.MemoryBytes,
	})
}
