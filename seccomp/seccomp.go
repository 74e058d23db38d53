// Package seccomp builds and installs BPF syscall filters for the sandboxed runner.
package seccomp

import (
	"fmt"
	"syscall"
	"unsafe"

	sberrors "judgesandbox/errors"
)

// Action is the disposition a filter (or a rule within it) applies to a syscall.
type Action int

const (
	// ActionKill terminates the process immediately.
	ActionKill Action = iota
	// ActionAllow lets the syscall proceed.
	ActionAllow
)

// CompareOp is the comparison applied to one argument predicate.
type CompareOp int

const (
	OpEQ CompareOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

// ArgPredicate constrains one syscall argument. Index selects which of the
// six syscall arguments (0-5) the predicate applies to.
type ArgPredicate struct {
	Index uint
	Op    CompareOp
	Value int64
}

// Rule matches a syscall number and an optional set of argument predicates
// (all of which must hold) and applies Action when it matches.
type Rule struct {
	Action    Action
	SyscallNr int
	Args      []ArgPredicate
}

// Filter is a BPF syscall filter under construction. The zero value is not
// usable; create one with New.
type Filter struct {
	defaultAction Action
	rules         []Rule
	loaded        bool
}

// New creates an empty filter with the given default action.
func New(defaultAction Action) *Filter {
	return &Filter{defaultAction: defaultAction}
}

// AddRule appends a rule to the filter. Rules are evaluated in insertion
// order when the filter is loaded. Returns an error if the rule is malformed
// (too many argument predicates, or an out-of-range argument index).
func (f *Filter) AddRule(r Rule) error {
	if len(r.Args) > 6 {
		return sberrors.WrapWithDetail(sberrors.ErrFilterRuleRejected, sberrors.ErrFilter, "AddRule", "at most 6 argument predicates")
	}
	for _, pred := range r.Args {
		if pred.Index > 5 {
			return sberrors.WrapWithDetail(sberrors.ErrFilterRuleRejected, sberrors.ErrFilter, "AddRule", "argument index out of range")
		}
		if isOrderingOp(pred.Op) && (pred.Value < 0 || pred.Value > 0xffffffff) {
			return sberrors.WrapWithDetail(sberrors.ErrFilterRuleRejected, sberrors.ErrFilter, "AddRule", "ordering predicates support only values in [0, 2^32)")
		}
	}
	f.rules = append(f.rules, r)
	return nil
}

// Load compiles the accumulated rules into a BPF program and installs it on
// the calling thread via prctl(PR_SET_SECCOMP). It is a one-shot operation;
// calling Load twice on the same Filter returns ErrFilterAlreadyLoaded.
func (f *Filter) Load() error {
	if f.loaded {
		return sberrors.ErrFilterAlreadyLoaded
	}

	if _, _, errno := syscall.Syscall(syscall.SYS_PRCTL, prSetNoNewPrivs, 1, 0); errno != 0 {
		return sberrors.WrapWithDetail(errno, sberrors.ErrFilter, "Load", "prctl(PR_SET_NO_NEW_PRIVS)")
	}

	program, err := buildFilter(f.defaultAction, f.rules)
	if err != nil {
		return sberrors.Wrap(err, sberrors.ErrFilter, "Load")
	}

	prog := sockFprog{
		Len:    uint16(len(program)),
		Filter: &program[0],
	}

	if _, _, errno := syscall.Syscall(syscall.SYS_PRCTL, prSetSeccomp, seccompModeFilter, uintptr(unsafe.Pointer(&prog))); errno != 0 {
		return sberrors.WrapWithDetail(sberrors.ErrFilterLoadFailed, sberrors.ErrFilter, "Load", fmt.Sprintf("prctl(PR_SET_SECCOMP): %v", errno))
	}

	f.loaded = true
	return nil
}

// SyscallNumberByName resolves a syscall name to its number on the host
// architecture (x86_64). Returns ErrUnknownSyscall if the name is not in the
// table.
func SyscallNumberByName(name string) (int, error) {
	nr, ok := syscallMap[name]
	if !ok {
		return 0, sberrors.WrapWithDetail(sberrors.ErrUnknownSyscall, sberrors.ErrFilter, "SyscallNumberByName", name)
	}
	return nr, nil
}

func isOrderingOp(op CompareOp) bool {
	switch op {
	case OpLT, OpLE, OpGT, OpGE:
		return true
	default:
		return false
	}
}
