package runner

import (
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

func TestNamespaceFlags_IncludesEveryRequiredFlag(t *testing.T) {
	flags := namespaceFlags()

	required := []uintptr{
		uintptr(unix.CLONE_NEWCGROUP),
		syscall.CLONE_NEWIPC,
		syscall.CLONE_NEWNET,
		syscall.CLONE_NEWNS,
		syscall.CLONE_NEWPID,
		syscall.CLONE_NEWUSER,
		syscall.CLONE_NEWUTS,
	}

	for _, flag := range required {
		if flags&flag == 0 {
			t.Errorf("namespaceFlags() missing bit %#x", flag)
		}
	}
}

func TestNamespaceFlags_ExcludesShareFlags(t *testing.T) {
	flags := namespaceFlags()

	// CLONE_FILES/CLONE_FS/CLONE_SYSVSEM make the child *share* the
	// parent's fd table, fs_struct, and sysvsem undo list instead of
	// getting its own via fork — and CLONE_FS combined with CLONE_NEWNS or
	// CLONE_NEWUSER is rejected by the kernel with EINVAL.
	excluded := []uintptr{
		syscall.CLONE_FILES,
		syscall.CLONE_FS,
		syscall.CLONE_SYSVSEM,
	}

	for _, flag := range excluded {
		if flags&flag != 0 {
			t.Errorf("namespaceFlags() must not set share flag %#x", flag)
		}
	}
}

func TestNamespaceFlags_CgroupNamespaceValue(t *testing.T) {
	if unix.CLONE_NEWCGROUP != 0x02000000 {
		t.Errorf("CLONE_NEWCGROUP = %#x, want 0x02000000", unix.CLONE_NEWCGROUP)
	}
}
