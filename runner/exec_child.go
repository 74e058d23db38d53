package runner

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
	"unsafe"

	"judgesandbox/seccomp"
)

// childArg is the hidden argv[1] a re-exec'd sandbox child is invoked with.
// The parent process always re-execs itself (os.Executable()) with this as
// its first argument; any importer's main() must call MaybeExecChild before
// doing its own argument parsing.
const childArg = "__judgesandbox_exec_child__"

// Environment variables used to pass the child's setup parameters across
// the re-exec. They never reach the judged program itself: the final
// execve call is given an explicitly empty environment.
const (
	envProgram = "_JUDGESANDBOX_PROGRAM"
	envChroot  = "_JUDGESANDBOX_CHROOT"
	envSeccomp = "_JUDGESANDBOX_SECCOMP"
)

// MaybeExecChild checks whether the current process was re-exec'd as a
// sandbox child and, if so, performs the child-side setup sequence and
// replaces the process image via execve. It never returns when the process
// is a sandbox child: on success the process image is gone, on failure it
// calls os.Exit with a non-zero status. Callers that are not a sandbox
// child return immediately so normal program startup continues.
func MaybeExecChild() {
	if len(os.Args) < 2 || os.Args[1] != childArg {
		return
	}
	execChild()
}

// execChild performs steps (d) through (h) of the runner's child path:
// chdir, optional chroot, seccomp install bound to the child's own argv[0]
// pointer, then execve. Every step here runs after namespaces have already
// been established via the parent's clone(2) flags and after stdio has
// already been wired through cmd.Stdin/cmd.Stdout, so only chroot, seccomp
// and exec remain.
func execChild() {
	program := os.Getenv(envProgram)
	if program == "" {
		fmt.Fprintln(os.Stderr, "judgesandbox: missing program path")
		os.Exit(127)
	}

	if err := syscall.Chdir("/"); err != nil {
		fmt.Fprintln(os.Stderr, "judgesandbox: chdir:", err)
		os.Exit(127)
	}

	if chroot := os.Getenv(envChroot); chroot != "" {
		if err := syscall.Chroot(chroot); err != nil {
			fmt.Fprintln(os.Stderr, "judgesandbox: chroot:", err)
			os.Exit(127)
		}
	}

	programBytes, err := syscall.BytePtrFromString(program)
	if err != nil {
		fmt.Fprintln(os.Stderr, "judgesandbox: program path:", err)
		os.Exit(127)
	}

	if wantSeccomp, _ := strconv.ParseBool(os.Getenv(envSeccomp)); wantSeccomp {
		if err := installExecveFilter(programBytes); err != nil {
			fmt.Fprintln(os.Stderr, "judgesandbox: seccomp:", err)
			os.Exit(127)
		}
	}

	argv := []*byte{programBytes, nil}
	envp := []*byte{nil}

	_, _, errno := syscall.RawSyscall(
		syscall.SYS_EXECVE,
		uintptr(unsafe.Pointer(programBytes)),
		uintptr(unsafe.Pointer(&argv[0])),
		uintptr(unsafe.Pointer(&envp[0])),
	)
	fmt.Fprintln(os.Stderr, "judgesandbox: execve:", errno)
	os.Exit(127)
}

// installExecveFilter builds and loads the canonical filter: default kill,
// with a single allow rule that matches execve only when argument 0 (the
// program path pointer) equals programBytes's address. Because this must be
// the child's own address space, the filter is constructed here rather than
// in the parent.
func installExecveFilter(programBytes *byte) error {
	nr, err := seccomp.SyscallNumberByName("execve")
	if err != nil {
		return err
	}

	filter := seccomp.New(seccomp.ActionKill)
	if err := filter.AddRule(seccomp.Rule{
		Action:    seccomp.ActionAllow,
		SyscallNr: nr,
		Args: []seccomp.ArgPredicate{
			{Index: 0, Op: seccomp.OpEQ, Value: int64(uintptr(unsafe.Pointer(programBytes)))},
		},
	}); err != nil {
		return err
	}
	return filter.Load()
}
