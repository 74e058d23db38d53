package runner

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// namespaceFlags returns the clone(2) flags the child process is created
// with: one CLONE_NEW* bit per namespace the sandbox isolates the child
// into. CLONE_NEWCGROUP (Linux 4.6+) is not exposed by the standard
// syscall package, so it is pulled from golang.org/x/sys/unix instead of
// hand-defining the constant.
//
// This deliberately excludes CLONE_FILES, CLONE_FS, and CLONE_SYSVSEM:
// those are clone(2) *sharing* flags (child keeps the parent's fd table,
// fs_struct, and SysV semaphore undo list), the opposite of isolation, and
// the kernel rejects CLONE_FS with CLONE_NEWNS or CLONE_NEWUSER outright
// (EINVAL). Omitting them is sufficient — fork gives the child its own
// private fd table, cwd/root, and sysvsem state by default, which is
// exactly what lets exec_child.go's chdir/chroot affect only the child.
func namespaceFlags() uintptr {
	return uintptr(
		unix.CLONE_NEWCGROUP |
			syscall.CLONE_NEWIPC |
			syscall.CLONE_NEWNET |
			syscall.CLONE_NEWNS |
			syscall.CLONE_NEWPID |
			syscall.CLONE_NEWUSER |
			syscall.CLONE_NEWUTS,
	)
}
