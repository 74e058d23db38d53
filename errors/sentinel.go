// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Compiler registry and configuration errors.
var (
	// ErrUnknownLanguage indicates the language tag has no registered CompilerConfig.
	ErrUnknownLanguage = &SandboxError{
		Kind:   ErrConfiguration,
		Detail: "unknown language",
	}

	// ErrMalformedConfig indicates a compiler config failed schema validation.
	ErrMalformedConfig = &SandboxError{
		Kind:   ErrConfiguration,
		Detail: "malformed compiler config",
	}

	// ErrInvalidLimit indicates a ResourceLimit violates its invariants.
	ErrInvalidLimit = &SandboxError{
		Kind:   ErrConfiguration,
		Detail: "invalid resource limit",
	}

	// ErrChrootNotExist indicates the configured chroot path does not exist.
	ErrChrootNotExist = &SandboxError{
		Kind:   ErrConfiguration,
		Detail: "chroot path does not exist",
	}
)

// Filter (seccomp) errors.
var (
	// ErrFilterRuleRejected indicates AddRule rejected a malformed rule.
	ErrFilterRuleRejected = &SandboxError{
		Kind:   ErrFilter,
		Detail: "seccomp rule rejected",
	}

	// ErrFilterLoadFailed indicates prctl(PR_SET_SECCOMP) failed.
	ErrFilterLoadFailed = &SandboxError{
		Kind:   ErrFilter,
		Detail: "seccomp load failed",
	}

	// ErrUnknownSyscall indicates syscall_number_by_name found no match.
	ErrUnknownSyscall = &SandboxError{
		Kind:   ErrFilter,
		Detail: "unknown syscall name",
	}

	// ErrFilterAlreadyLoaded indicates Load was called more than once on a Filter.
	ErrFilterAlreadyLoaded = &SandboxError{
		Kind:   ErrFilter,
		Detail: "filter already loaded",
	}
)

// Sandbox (runner) errors.
var (
	// ErrForkFailed indicates the parent could not fork/spawn the child.
	ErrForkFailed = &SandboxError{
		Kind:   ErrSandbox,
		Detail: "fork failed",
	}

	// ErrUnshareFailed indicates the child could not unshare namespaces.
	ErrUnshareFailed = &SandboxError{
		Kind:   ErrSandbox,
		Detail: "unshare failed",
	}

	// ErrWaitFailed indicates waitpid returned an error or an unexpected status.
	ErrWaitFailed = &SandboxError{
		Kind:   ErrSandbox,
		Detail: "waitpid failed",
	}

	// ErrRunnerReused indicates a RunnerSpec's Run was called more than once.
	ErrRunnerReused = &SandboxError{
		Kind:   ErrSandbox,
		Detail: "runner spec already consumed",
	}
)

// Cgroup errors.
var (
	// ErrCgroupWrite indicates an attribute file write failed.
	ErrCgroupWrite = &SandboxError{
		Kind:   ErrIO,
		Detail: "cgroup attribute write failed",
	}

	// ErrCgroupRead indicates an attribute file read failed.
	ErrCgroupRead = &SandboxError{
		Kind:   ErrIO,
		Detail: "cgroup attribute read failed",
	}

	// ErrCgroupController indicates a controller was used before initialize().
	ErrCgroupController = &SandboxError{
		Kind:   ErrInternal,
		Detail: "cgroup controller not initialized",
	}
)
