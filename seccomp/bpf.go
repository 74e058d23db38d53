package seccomp

import "fmt"

// prctl/seccomp constants.
const (
	seccompModeFilter = 2

	prSetNoNewPrivs = 38
	prSetSeccomp    = 22

	seccompRetKillProcess = 0x80000000
	seccompRetAllow       = 0x7fff0000
)

// classic BPF opcodes.
const (
	bpfLD  = 0x00
	bpfJMP = 0x05
	bpfRET = 0x06
	bpfW   = 0x00
	bpfABS = 0x20
	bpfJEQ = 0x10
	bpfJGE = 0x30
	bpfJGT = 0x20
	bpfK   = 0x00
)

// seccomp_data field offsets (little-endian x86_64). args[i] is a 64-bit
// value split across two consecutive 32-bit words; the low-order word comes
// first.
const (
	offsetNR   = 0
	offsetArch = 4
)

func argLoOffset(index uint) uint32 { return uint32(16 + 8*index) }
func argHiOffset(index uint) uint32 { return argLoOffset(index) + 4 }

const auditArchX86_64 = 0xc000003e

// sockFprog mirrors struct sock_fprog from linux/filter.h.
type sockFprog struct {
	Len    uint16
	Filter *sockFilter
}

// sockFilter mirrors struct sock_filter from linux/filter.h.
type sockFilter struct {
	Code uint16
	Jt   uint8
	Jf   uint8
	K    uint32
}

func bpfStmt(code uint16, k uint32) sockFilter {
	return sockFilter{Code: code, K: k}
}

func bpfJump(code uint16, k uint32, jt, jf uint8) sockFilter {
	return sockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}

func actionToRet(a Action) uint32 {
	if a == ActionAllow {
		return seccompRetAllow
	}
	return seccompRetKillProcess
}

// patchTarget records a jump instruction whose offset must be filled in once
// the end of the enclosing block is known.
type patchTarget struct {
	idx   int
	field byte // 'f' for Jf, 't' for Jt
}

// buildFilter lowers a default action and an ordered rule list into a BPF
// program. Architecture is checked once up front (kill on mismatch); each
// rule reloads the syscall number so rule blocks are self-contained.
func buildFilter(defaultAction Action, rules []Rule) ([]sockFilter, error) {
	var program []sockFilter

	program = append(program, bpfStmt(bpfLD|bpfW|bpfABS, offsetArch))
	program = append(program, bpfJump(bpfJMP|bpfJEQ|bpfK, auditArchX86_64, 1, 0))
	program = append(program, bpfStmt(bpfRET|bpfK, seccompRetKillProcess))

	for _, rule := range rules {
		block, err := buildRuleBlock(rule)
		if err != nil {
			return nil, err
		}
		program = append(program, block...)
	}

	program = append(program, bpfStmt(bpfRET|bpfK, actionToRet(defaultAction)))
	return program, nil
}

// buildRuleBlock compiles one rule into a self-contained sequence: on any
// mismatch (wrong syscall, or a failed predicate) control falls through to
// the instruction immediately after the block; on a full match it returns
// the rule's action. EQ and NE compare both 32-bit words of the argument.
// LT, LE, GT and GE compare only the low 32-bit word against the value; the
// argument's high word is not examined (AddRule limits their values to
// [0, 2^32)).
func buildRuleBlock(rule Rule) ([]sockFilter, error) {
	var block []sockFilter
	var jfPatches, jtPatches []int

	block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, offsetNR))
	jfPatches = append(jfPatches, len(block))
	block = append(block, bpfJump(bpfJMP|bpfJEQ|bpfK, uint32(rule.SyscallNr), 0, 0))

	for _, pred := range rule.Args {
		lo := argLoOffset(pred.Index)
		hi := argHiOffset(pred.Index)
		valBits := uint64(pred.Value)
		loVal := uint32(valBits)
		hiVal := uint32(valBits >> 32)

		switch pred.Op {
		case OpEQ:
			block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, hi))
			jfPatches = append(jfPatches, len(block))
			block = append(block, bpfJump(bpfJMP|bpfJEQ|bpfK, hiVal, 0, 0))

			block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, lo))
			jfPatches = append(jfPatches, len(block))
			block = append(block, bpfJump(bpfJMP|bpfJEQ|bpfK, loVal, 0, 0))

		case OpNE:
			block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, hi))
			block = append(block, bpfJump(bpfJMP|bpfJEQ|bpfK, hiVal, 0, 2))

			block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, lo))
			jtPatches = append(jtPatches, len(block))
			block = append(block, bpfJump(bpfJMP|bpfJEQ|bpfK, loVal, 0, 0))

		case OpLT:
			block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, lo))
			jtPatches = append(jtPatches, len(block))
			block = append(block, bpfJump(bpfJMP|bpfJGE|bpfK, loVal, 0, 0))

		case OpLE:
			block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, lo))
			jtPatches = append(jtPatches, len(block))
			block = append(block, bpfJump(bpfJMP|bpfJGT|bpfK, loVal, 0, 0))

		case OpGT:
			block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, lo))
			jfPatches = append(jfPatches, len(block))
			block = append(block, bpfJump(bpfJMP|bpfJGT|bpfK, loVal, 0, 0))

		case OpGE:
			block = append(block, bpfStmt(bpfLD|bpfW|bpfABS, lo))
			jfPatches = append(jfPatches, len(block))
			block = append(block, bpfJump(bpfJMP|bpfJGE|bpfK, loVal, 0, 0))

		default:
			return nil, fmt.Errorf("unknown compare op %d", pred.Op)
		}
	}

	block = append(block, bpfStmt(bpfRET|bpfK, actionToRet(rule.Action)))

	end := len(block)
	for _, idx := range jfPatches {
		block[idx].Jf = uint8(end - idx - 1)
	}
	for _, idx := range jtPatches {
		block[idx].Jt = uint8(end - idx - 1)
	}

	return block, nil
}
