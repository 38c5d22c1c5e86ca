package instruction

import "fmt"

// Opcode identifies the operation of an Instruction. Values below
// FAR_JUMP_ABS are base RV64IMC operations; the rest are synthetic.
type Opcode uint8

// UNLOADED is the zero opcode; no decoder produces it.
const UNLOADED Opcode = 0

// RV64I base.
const (
	LUI Opcode = iota + 1
	AUIPC
	JAL
	JALR

	BEQ
	BNE
	BLT
	BGE
	BLTU
	BGEU

	LB
	LH
	LW
	LD
	LBU
	LHU
	LWU

	SB
	SH
	SW
	SD

	ADDI
	SLTI
	SLTIU
	XORI
	ORI
	ANDI
	SLLI
	SRLI
	SRAI

	ADD
	SUB
	SLL
	SLT
	SLTU
	XOR
	SRL
	SRA
	OR
	AND

	ADDIW
	SLLIW
	SRLIW
	SRAIW
	ADDW
	SUBW
	SLLW
	SRLW
	SRAW

	FENCE
	ECALL
	EBREAK

	// M extension.
	MUL
	MULH
	MULHSU
	MULHU
	DIV
	DIVU
	REM
	REMU
	MULW
	DIVW
	DIVUW
	REMW
	REMUW
)

// Synthetic opcodes emitted by macro-op fusion. These have no memory encoding;
// every executor must implement them.
const (
	FAR_JUMP_ABS Opcode = iota + 0x80
	FAR_JUMP_REL
	LD_SIGN_EXTENDED_32_CONSTANT
	WIDE_MUL
	WIDE_MULU
	WIDE_DIV
	WIDE_DIVU
)

var opcodeNames = map[Opcode]string{
	UNLOADED: "unloaded", LUI: "lui", AUIPC: "auipc", JAL: "jal", JALR: "jalr",
	BEQ: "beq", BNE: "bne", BLT: "blt", BGE: "bge", BLTU: "bltu", BGEU: "bgeu",
	LB: "lb", LH: "lh", LW: "lw", LD: "ld", LBU: "lbu", LHU: "lhu", LWU: "lwu",
	SB: "sb", SH: "sh", SW: "sw", SD: "sd",
	ADDI: "addi", SLTI: "slti", SLTIU: "sltiu", XORI: "xori", ORI: "ori", ANDI: "andi",
	SLLI: "slli", SRLI: "srli", SRAI: "srai",
	ADD: "add", SUB: "sub", SLL: "sll", SLT: "slt", SLTU: "sltu", XOR: "xor",
	SRL: "srl", SRA: "sra", OR: "or", AND: "and",
	ADDIW: "addiw", SLLIW: "slliw", SRLIW: "srliw", SRAIW: "sraiw",
	ADDW: "addw", SUBW: "subw", SLLW: "sllw", SRLW: "srlw", SRAW: "sraw",
	FENCE: "fence", ECALL: "ecall", EBREAK: "ebreak",
	MUL: "mul", MULH: "mulh", MULHSU: "mulhsu", MULHU: "mulhu",
	DIV: "div", DIVU: "divu", REM: "rem", REMU: "remu",
	MULW: "mulw", DIVW: "divw", DIVUW: "divuw", REMW: "remw", REMUW: "remuw",

	FAR_JUMP_ABS:                 "far_jump_abs",
	FAR_JUMP_REL:                 "far_jump_rel",
	LD_SIGN_EXTENDED_32_CONSTANT: "ld_sign_extended_32_constant",
	WIDE_MUL:                     "wide_mul",
	WIDE_MULU:                    "wide_mulu",
	WIDE_DIV:                     "wide_div",
	WIDE_DIVU:                    "wide_divu",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%#x)", uint8(op))
}

// Known reports whether op names an operation.
func (op Opcode) Known() bool {
	_, ok := opcodeNames[op]
	return ok
}

// IsSynthetic reports whether op is produced only by macro-op fusion.
func IsSynthetic(op Opcode) bool {
	return op >= FAR_JUMP_ABS && op <= WIDE_DIVU
}

// Form is the operand layout an opcode uses.
type Form uint8

const (
	FormR Form = iota
	FormI
	FormS
	FormU
	FormR4
)

// FormOf returns the operand layout of op.
func FormOf(op Opcode) Form {
	switch op {
	case LUI, AUIPC, JAL, FAR_JUMP_ABS, FAR_JUMP_REL, LD_SIGN_EXTENDED_32_CONSTANT:
		return FormU
	case BEQ, BNE, BLT, BGE, BLTU, BGEU, SB, SH, SW, SD:
		return FormS
	case JALR, LB, LH, LW, LD, LBU, LHU, LWU,
		ADDI, SLTI, SLTIU, XORI, ORI, ANDI, SLLI, SRLI, SRAI,
		ADDIW, SLLIW, SRLIW, SRAIW:
		return FormI
	case WIDE_MUL, WIDE_MULU, WIDE_DIV, WIDE_DIVU:
		return FormR4
	default:
		return FormR
	}
}
