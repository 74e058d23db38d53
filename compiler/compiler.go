// Package compiler dispatches a Source to its registered language backend:
// writes the code to a temp file, expands the backend's argv template, and
// enforces a per-language compile timeout.
package compiler

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/juju/ratelimit"

	sberrors "judgesandbox/errors"
	"judgesandbox/logging"
	"judgesandbox/metrics"
)

// Source is a piece of code tagged with the language it should be
// compiled as.
type Source struct {
	Language string
	Code     []byte
}

// Result is the outcome of one compile attempt.
type Result struct {
	Success bool
	Stderr  []byte
}

// Dispatcher throttles how many compiles may start per unit time on one
// judge host, independent of how many languages are registered.
type Dispatcher struct {
	bucket *ratelimit.Bucket
}

// NewDispatcher creates a Dispatcher whose token bucket holds up to
// maxConcurrent tokens (initially full) and refills at maxConcurrent tokens
// per second; each compile start takes one token. It limits the rate of
// compile starts, not how many compiles are running at once.
func NewDispatcher(maxConcurrent int) *Dispatcher {
	return &Dispatcher{
		bucket: ratelimit.NewBucketWithRate(float64(maxConcurrent), int64(maxConcurrent)),
	}
}

// Compile waits for a dispatch token then runs Compile(source, executablePath).
func (d *Dispatcher) Compile(ctx context.Context, source Source, executablePath string) (Result, error) {
	d.bucket.Wait(1)
	return Compile(ctx, source, executablePath)
}

// Compile writes source.Code to a temp file named per its backend's suffix,
// expands the backend's argv template, and runs the compiler with stdin
// discarded, stdout discarded, and stderr captured. The compile is bounded
// by the backend's configured timeout even when ctx has no deadline; an
// earlier deadline or cancellation of ctx also stops it.
func Compile(ctx context.Context, source Source, executablePath string) (Result, error) {
	log := logging.WithOperation(logging.WithLanguage(logging.FromContext(ctx), source.Language), "compile")

	cfg, err := ForLanguage(source.Language)
	if err != nil {
		log.Warn("unknown language backend")
		return Result{}, err
	}

	sourceFile, err := writeSourceFile(source.Code, cfg.Suffix)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(sourceFile)

	args := make([]string, len(cfg.Args))
	for i, token := range cfg.Args {
		switch token {
		case "{source_file}":
			args[i] = sourceFile
		case "{executable_file}":
			args[i] = executablePath
		default:
			args[i] = token
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, cfg.Command, args...)
	cmd.Stdin = nil

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return Result{}, sberrors.Wrap(err, sberrors.ErrIO, "compiler.Compile")
	}
	defer devNull.Close()
	cmd.Stdout = devNull

	var stderr strings.Builder
	cmd.Stderr = &stderr

	startTime := time.Now()
	runErr := cmd.Run()
	duration := time.Since(startTime)

	success := runErr == nil && timeoutCtx.Err() != context.DeadlineExceeded
	metrics.ObserveCompile(duration, success)
	if !success {
		log.Info("compile did not succeed", "timed_out", timeoutCtx.Err() == context.DeadlineExceeded)
	}

	return Result{Success: success, Stderr: []byte(stderr.String())}, nil
}

func writeSourceFile(code []byte, suffix string) (string, error) {
	f, err := os.CreateTemp("", "source_*."+suffix)
	if err != nil {
		return "", sberrors.Wrap(err, sberrors.ErrIO, "compiler.writeSourceFile")
	}
	defer f.Close()

	if _, err := f.Write(code); err != nil {
		os.Remove(f.Name())
		return "", sberrors.Wrap(err, sberrors.ErrIO, "compiler.writeSourceFile")
	}

	return f.Name(), nil
}
