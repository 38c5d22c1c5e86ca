// Package disasm renders decoded instruction words, synthetic ones included,
// as assembly text.
package disasm

import (
	"fmt"

	. "github.com/jam-duna/rvmop/rvm/instruction"
)

var regNames = [RegisterCount]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of r.
func RegName(r Register) string {
	return regNames[r&31]
}

// InstrDef formats one opcode. pc is the address the word was decoded at.
type InstrDef struct {
	Name   string
	Format func(name string, pc uint64, inst Instruction) string
}

var instrTable = map[Opcode]InstrDef{}

func init() {
	for op := Opcode(1); op != 0; op++ {
		if op.Known() {
			instrTable[op] = InstrDef{Name: op.String(), Format: formatterFor(op)}
		}
	}
}

func formatterFor(op Opcode) func(string, uint64, Instruction) string {
	switch op {
	case JAL, AUIPC, FAR_JUMP_REL:
		return formatPCRelative
	case JALR, LB, LH, LW, LD, LBU, LHU, LWU:
		return formatOffsetBase
	case SB, SH, SW, SD:
		return formatStore
	case BEQ, BNE, BLT, BGE, BLTU, BGEU:
		return formatBranch
	case FENCE, ECALL, EBREAK:
		return func(name string, _ uint64, _ Instruction) string { return name }
	}
	switch FormOf(op) {
	case FormU:
		return formatU
	case FormI:
		return formatI
	case FormR4:
		return formatR4
	default:
		return formatR
	}
}

func imm(v int64) string {
	if v < 0 {
		return fmt.Sprintf("-%#x", uint64(-v))
	}
	return fmt.Sprintf("%#x", v)
}

func formatU(name string, _ uint64, inst Instruction) string {
	u := Utype(inst)
	return fmt.Sprintf("%s %s, %s", name, RegName(u.Rd()), imm(u.Immediate()))
}

// formatPCRelative shows the offset and the address it resolves to.
func formatPCRelative(name string, pc uint64, inst Instruction) string {
	u := Utype(inst)
	return fmt.Sprintf("%s %s, %s <%#x>", name, RegName(u.Rd()), imm(u.Immediate()), pc+uint64(u.Immediate()))
}

func formatI(name string, _ uint64, inst Instruction) string {
	i := Itype(inst)
	return fmt.Sprintf("%s %s, %s, %s", name, RegName(i.Rd()), RegName(i.Rs1()), imm(i.Immediate()))
}

func formatOffsetBase(name string, _ uint64, inst Instruction) string {
	i := Itype(inst)
	return fmt.Sprintf("%s %s, %d(%s)", name, RegName(i.Rd()), i.Immediate(), RegName(i.Rs1()))
}

func formatStore(name string, _ uint64, inst Instruction) string {
	s := Stype(inst)
	return fmt.Sprintf("%s %s, %d(%s)", name, RegName(s.Rs2()), s.Immediate(), RegName(s.Rs1()))
}

func formatBranch(name string, pc uint64, inst Instruction) string {
	s := Stype(inst)
	return fmt.Sprintf("%s %s, %s, %#x", name, RegName(s.Rs1()), RegName(s.Rs2()), pc+uint64(s.Immediate()))
}

func formatR(name string, _ uint64, inst Instruction) string {
	r := Rtype(inst)
	return fmt.Sprintf("%s %s, %s, %s", name, RegName(r.Rd()), RegName(r.Rs1()), RegName(r.Rs2()))
}

// formatR4 lists both destinations first: rd, rd2, rs1, rs2.
func formatR4(name string, _ uint64, inst Instruction) string {
	r := R4type(inst)
	return fmt.Sprintf("%s %s, %s, %s, %s", name, RegName(r.Rd()), RegName(r.Rd2()), RegName(r.Rs1()), RegName(r.Rs2()))
}

// Format renders inst as decoded at pc.
func Format(pc uint64, inst Instruction) string {
	op := ExtractOpcode(inst)
	def, ok := instrTable[op]
	if !ok {
		return op.String()
	}
	return def.Format(def.Name, pc, inst)
}
