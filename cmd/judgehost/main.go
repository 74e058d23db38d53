// judgehost is a thin operator CLI wired on top of the compiler and runner
// packages, for manual operation and smoke testing. It is not part of the
// library's contract: importers use the compiler/runner/cgroup/seccomp
// packages directly.
package main

import (
	"fmt"
	"os"

	"judgesandbox/runner"
)

func main() {
	// MaybeExecChild must run before any flag parsing: a re-exec'd sandbox
	// child is invoked with a hidden argv[1] sentinel and never reaches
	// cobra at all.
	runner.MaybeExecChild()

	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "judgehost:", err)
		os.Exit(1)
	}
}
