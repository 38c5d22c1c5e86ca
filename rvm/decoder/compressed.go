package decoder

import (
	. "github.com/jam-duna/rvmop/rvm/instruction"
)

// cRegister maps the 3-bit register field of CIW/CL/CS/CA/CB formats to x8..x15.
func cRegister(v uint16) Register {
	return Register(8 + v&0x7)
}

func ciImm(lo uint16) int32 {
	return sext(uint32((lo>>7)&0x20|(lo>>2)&0x1f), 6)
}

func ciShamt(lo uint16) int32 {
	return int32((lo>>7)&0x20 | (lo>>2)&0x1f)
}

// decodeCompressed expands a 16-bit RV64C encoding into the equivalent base
// instruction. ok is false for reserved or unsupported encodings.
func decodeCompressed(lo uint16) (Instruction, bool) {
	if lo == 0 {
		return 0, false
	}
	f3 := lo >> 13
	switch lo & 0x3 {
	case 0:
		return decodeQuadrant0(lo, f3)
	case 1:
		return decodeQuadrant1(lo, f3)
	case 2:
		return decodeQuadrant2(lo, f3)
	}
	return 0, false
}

func decodeQuadrant0(lo uint16, f3 uint16) (Instruction, bool) {
	rdp := cRegister(lo >> 2)
	rs1p := cRegister(lo >> 7)
	wordOff := int32((lo>>7)&0x38 | (lo>>4)&0x4 | (lo<<1)&0x40)
	dwordOff := int32((lo>>7)&0x38 | (lo<<1)&0xc0)
	switch f3 {
	case 0: // c.addi4spn
		imm := int32((lo>>7)&0x30 | (lo>>1)&0x3c0 | (lo>>4)&0x4 | (lo>>2)&0x8)
		if imm == 0 {
			return 0, false
		}
		return Instruction(NewItype(ADDI, rdp, SP, imm)), true
	case 2: // c.lw
		return Instruction(NewItype(LW, rdp, rs1p, wordOff)), true
	case 3: // c.ld
		return Instruction(NewItype(LD, rdp, rs1p, dwordOff)), true
	case 6: // c.sw
		return Instruction(NewStype(SW, rs1p, rdp, wordOff)), true
	case 7: // c.sd
		return Instruction(NewStype(SD, rs1p, rdp, dwordOff)), true
	}
	return 0, false
}

func decodeQuadrant1(lo uint16, f3 uint16) (Instruction, bool) {
	r := Register((lo >> 7) & 0x1f)
	switch f3 {
	case 0: // c.addi, c.nop
		return Instruction(NewItype(ADDI, r, r, ciImm(lo))), true
	case 1: // c.addiw
		if r == Zero {
			return 0, false
		}
		return Instruction(NewItype(ADDIW, r, r, ciImm(lo))), true
	case 2: // c.li
		return Instruction(NewItype(ADDI, r, Zero, ciImm(lo))), true
	case 3:
		if r == SP { // c.addi16sp
			v := (lo>>3)&0x200 | (lo>>2)&0x10 | (lo<<1)&0x40 | (lo<<4)&0x180 | (lo<<3)&0x20
			imm := sext(uint32(v), 10)
			if imm == 0 {
				return 0, false
			}
			return Instruction(NewItype(ADDI, SP, SP, imm)), true
		}
		// c.lui
		v := uint32(lo)<<5&0x20000 | uint32(lo)<<10&0x1f000
		imm := sext(v, 18)
		if imm == 0 {
			return 0, false
		}
		return Instruction(NewUtype(LUI, r, int64(imm))), true
	case 4:
		return decodeMiscALU(lo)
	case 5: // c.j
		v := (lo>>1)&0x800 | (lo>>7)&0x10 | (lo>>1)&0x300 | (lo<<2)&0x400 |
			(lo>>1)&0x40 | (lo<<1)&0x80 | (lo>>2)&0xe | (lo<<3)&0x20
		return Instruction(NewUtype(JAL, Zero, int64(sext(uint32(v), 12)))), true
	case 6, 7: // c.beqz, c.bnez
		v := (lo>>4)&0x100 | (lo>>7)&0x18 | (lo<<1)&0xc0 | (lo>>2)&0x6 | (lo<<3)&0x20
		op := BEQ
		if f3 == 7 {
			op = BNE
		}
		return Instruction(NewStype(op, cRegister(lo>>7), Zero, sext(uint32(v), 9))), true
	}
	return 0, false
}

func decodeMiscALU(lo uint16) (Instruction, bool) {
	r := cRegister(lo >> 7)
	switch (lo >> 10) & 0x3 {
	case 0:
		return Instruction(NewItype(SRLI, r, r, ciShamt(lo))), true
	case 1:
		return Instruction(NewItype(SRAI, r, r, ciShamt(lo))), true
	case 2:
		return Instruction(NewItype(ANDI, r, r, ciImm(lo))), true
	}
	rs2p := cRegister(lo >> 2)
	var op Opcode
	if lo&0x1000 == 0 {
		op = [4]Opcode{SUB, XOR, OR, AND}[(lo>>5)&0x3]
	} else {
		op = [4]Opcode{SUBW, ADDW, UNLOADED, UNLOADED}[(lo>>5)&0x3]
	}
	if op == UNLOADED {
		return 0, false
	}
	return Instruction(NewRtype(op, r, r, rs2p)), true
}

func decodeQuadrant2(lo uint16, f3 uint16) (Instruction, bool) {
	r := Register((lo >> 7) & 0x1f)
	r2 := Register((lo >> 2) & 0x1f)
	switch f3 {
	case 0: // c.slli
		return Instruction(NewItype(SLLI, r, r, ciShamt(lo))), true
	case 2: // c.lwsp
		if r == Zero {
			return 0, false
		}
		off := int32((lo>>7)&0x20 | (lo>>2)&0x1c | (lo<<4)&0xc0)
		return Instruction(NewItype(LW, r, SP, off)), true
	case 3: // c.ldsp
		if r == Zero {
			return 0, false
		}
		off := int32((lo>>7)&0x20 | (lo>>2)&0x18 | (lo<<4)&0x1c0)
		return Instruction(NewItype(LD, r, SP, off)), true
	case 4:
		switch {
		case lo&0x1000 == 0 && r2 == Zero: // c.jr
			if r == Zero {
				return 0, false
			}
			return Instruction(NewItype(JALR, Zero, r, 0)), true
		case lo&0x1000 == 0: // c.mv
			return Instruction(NewRtype(ADD, r, Zero, r2)), true
		case r == Zero && r2 == Zero: // c.ebreak
			return Instruction(NewRtype(EBREAK, 0, 0, 0)), true
		case r2 == Zero: // c.jalr
			return Instruction(NewItype(JALR, RA, r, 0)), true
		default: // c.add
			return Instruction(NewRtype(ADD, r, r, r2)), true
		}
	case 6: // c.swsp
		off := int32((lo>>7)&0x3c | (lo>>1)&0xc0)
		return Instruction(NewStype(SW, SP, r2, off)), true
	case 7: // c.sdsp
		off := int32((lo>>7)&0x38 | (lo>>1)&0x1c0)
		return Instruction(NewStype(SD, SP, r2, off)), true
	}
	return 0, false
}
