package decoder

import (
	. "github.com/jam-duna/rvmop/rvm/instruction"
)

// Major opcodes of the 32-bit encoding.
const (
	opcodeLoad    = 0x03
	opcodeFence   = 0x0f
	opcodeOpImm   = 0x13
	opcodeAuipc   = 0x17
	opcodeOpImm32 = 0x1b
	opcodeStore   = 0x23
	opcodeOp      = 0x33
	opcodeLui     = 0x37
	opcodeOp32    = 0x3b
	opcodeBranch  = 0x63
	opcodeJalr    = 0x67
	opcodeJal     = 0x6f
	opcodeSystem  = 0x73
)

func rd(raw uint32) Register   { return Register((raw >> 7) & 0x1f) }
func rs1(raw uint32) Register  { return Register((raw >> 15) & 0x1f) }
func rs2(raw uint32) Register  { return Register((raw >> 20) & 0x1f) }
func funct3(raw uint32) uint32 { return (raw >> 12) & 0x7 }
func funct7(raw uint32) uint32 { return raw >> 25 }
func immI(raw uint32) int32    { return int32(raw) >> 20 }
func immU(raw uint32) int64    { return int64(int32(raw & 0xfffff000)) }

func immS(raw uint32) int32 {
	return sext((raw>>25)<<5|(raw>>7)&0x1f, 12)
}

func immB(raw uint32) int32 {
	v := (raw>>31)<<12 |
		((raw>>7)&0x1)<<11 |
		((raw>>25)&0x3f)<<5 |
		((raw>>8)&0xf)<<1
	return sext(v, 13)
}

func immJ(raw uint32) int64 {
	v := (raw>>31)<<20 |
		((raw>>12)&0xff)<<12 |
		((raw>>20)&0x1)<<11 |
		((raw>>21)&0x3ff)<<1
	return int64(sext(v, 21))
}

var (
	branchOps = [8]Opcode{BEQ, BNE, UNLOADED, UNLOADED, BLT, BGE, BLTU, BGEU}
	loadOps   = [8]Opcode{LB, LH, LW, LD, LBU, LHU, LWU, UNLOADED}
	storeOps  = [8]Opcode{SB, SH, SW, SD, UNLOADED, UNLOADED, UNLOADED, UNLOADED}
	opImmOps  = [8]Opcode{ADDI, UNLOADED, SLTI, SLTIU, XORI, UNLOADED, ORI, ANDI}
	opOps     = [8]Opcode{ADD, SLL, SLT, SLTU, XOR, SRL, OR, AND}
	mulDivOps = [8]Opcode{MUL, MULH, MULHSU, MULHU, DIV, DIVU, REM, REMU}
	mulDivW   = [8]Opcode{MULW, UNLOADED, UNLOADED, UNLOADED, DIVW, DIVUW, REMW, REMUW}
)

// decode32 decodes a 32-bit encoding; ok is false for anything unsupported.
func decode32(raw uint32) (Instruction, bool) {
	f3 := funct3(raw)
	switch raw & 0x7f {
	case opcodeLui:
		return Instruction(NewUtype(LUI, rd(raw), immU(raw))), true
	case opcodeAuipc:
		return Instruction(NewUtype(AUIPC, rd(raw), immU(raw))), true
	case opcodeJal:
		return Instruction(NewUtype(JAL, rd(raw), immJ(raw))), true
	case opcodeJalr:
		if f3 != 0 {
			return 0, false
		}
		return Instruction(NewItype(JALR, rd(raw), rs1(raw), immI(raw))), true
	case opcodeBranch:
		op := branchOps[f3]
		if op == UNLOADED {
			return 0, false
		}
		return Instruction(NewStype(op, rs1(raw), rs2(raw), immB(raw))), true
	case opcodeLoad:
		op := loadOps[f3]
		if op == UNLOADED {
			return 0, false
		}
		return Instruction(NewItype(op, rd(raw), rs1(raw), immI(raw))), true
	case opcodeStore:
		op := storeOps[f3]
		if op == UNLOADED {
			return 0, false
		}
		return Instruction(NewStype(op, rs1(raw), rs2(raw), immS(raw))), true
	case opcodeOpImm:
		return decodeOpImm(raw)
	case opcodeOpImm32:
		return decodeOpImm32(raw)
	case opcodeOp:
		return decodeOp(raw)
	case opcodeOp32:
		return decodeOp32(raw)
	case opcodeFence:
		return Instruction(NewRtype(FENCE, 0, 0, 0)), true
	case opcodeSystem:
		switch raw {
		case 0x00000073:
			return Instruction(NewRtype(ECALL, 0, 0, 0)), true
		case 0x00100073:
			return Instruction(NewRtype(EBREAK, 0, 0, 0)), true
		}
	}
	return 0, false
}

func decodeOpImm(raw uint32) (Instruction, bool) {
	f3 := funct3(raw)
	shamt := int32((raw >> 20) & 0x3f)
	funct6 := raw >> 26
	switch f3 {
	case 1:
		if funct6 != 0 {
			return 0, false
		}
		return Instruction(NewItype(SLLI, rd(raw), rs1(raw), shamt)), true
	case 5:
		switch funct6 {
		case 0x00:
			return Instruction(NewItype(SRLI, rd(raw), rs1(raw), shamt)), true
		case 0x10:
			return Instruction(NewItype(SRAI, rd(raw), rs1(raw), shamt)), true
		}
		return 0, false
	}
	return Instruction(NewItype(opImmOps[f3], rd(raw), rs1(raw), immI(raw))), true
}

func decodeOpImm32(raw uint32) (Instruction, bool) {
	shamt := int32((raw >> 20) & 0x1f)
	switch f3, f7 := funct3(raw), funct7(raw); {
	case f3 == 0:
		return Instruction(NewItype(ADDIW, rd(raw), rs1(raw), immI(raw))), true
	case f3 == 1 && f7 == 0x00:
		return Instruction(NewItype(SLLIW, rd(raw), rs1(raw), shamt)), true
	case f3 == 5 && f7 == 0x00:
		return Instruction(NewItype(SRLIW, rd(raw), rs1(raw), shamt)), true
	case f3 == 5 && f7 == 0x20:
		return Instruction(NewItype(SRAIW, rd(raw), rs1(raw), shamt)), true
	}
	return 0, false
}

func decodeOp(raw uint32) (Instruction, bool) {
	var op Opcode
	switch f3, f7 := funct3(raw), funct7(raw); f7 {
	case 0x00:
		op = opOps[f3]
	case 0x01:
		op = mulDivOps[f3]
	case 0x20:
		switch f3 {
		case 0:
			op = SUB
		case 5:
			op = SRA
		}
	}
	if op == UNLOADED {
		return 0, false
	}
	return Instruction(NewRtype(op, rd(raw), rs1(raw), rs2(raw))), true
}

func decodeOp32(raw uint32) (Instruction, bool) {
	var op Opcode
	switch f3, f7 := funct3(raw), funct7(raw); f7 {
	case 0x00:
		switch f3 {
		case 0:
			op = ADDW
		case 1:
			op = SLLW
		case 5:
			op = SRLW
		}
	case 0x01:
		op = mulDivW[f3]
	case 0x20:
		switch f3 {
		case 0:
			op = SUBW
		case 5:
			op = SRAW
		}
	}
	if op == UNLOADED {
		return 0, false
	}
	return Instruction(NewRtype(op, rd(raw), rs1(raw), rs2(raw))), true
}
