package asm

// 16-bit C extension encodings. Immediates are not range checked.

func ci(funct3 uint16, rd Register, imm int32, quadrant uint16) uint16 {
	u := uint16(imm)
	return funct3<<13 | (u>>5&0x1)<<12 | uint16(rd)<<7 | (u&0x1f)<<2 | quadrant
}

func (p *Program) CNop() *Program {
	return p.Half(0x0001)
}

func (p *Program) CAddi(rd Register, imm int32) *Program {
	return p.Half(ci(0, rd, imm, 1))
}

func (p *Program) CAddiw(rd Register, imm int32) *Program {
	return p.Half(ci(1, rd, imm, 1))
}

func (p *Program) CLi(rd Register, imm int32) *Program {
	return p.Half(ci(2, rd, imm, 1))
}

// CLui loads upper, which must be a non-zero multiple of 4096 in [-2^17, 2^17).
func (p *Program) CLui(rd Register, upper int32) *Program {
	return p.Half(ci(3, rd, upper>>12, 1))
}

func (p *Program) CJr(rs1 Register) *Program {
	return p.Half(0x8002 | uint16(rs1)<<7)
}

func (p *Program) CJalr(rs1 Register) *Program {
	return p.Half(0x9002 | uint16(rs1)<<7)
}

func (p *Program) CMv(rd, rs2 Register) *Program {
	return p.Half(0x8002 | uint16(rd)<<7 | uint16(rs2)<<2)
}

func (p *Program) CAdd(rd, rs2 Register) *Program {
	return p.Half(0x9002 | uint16(rd)<<7 | uint16(rs2)<<2)
}

func (p *Program) CEbreak() *Program {
	return p.Half(0x9002)
}
