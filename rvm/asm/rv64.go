package asm

const (
	opLoad    = 0x03
	opOpImm   = 0x13
	opAuipc   = 0x17
	opOpImm32 = 0x1b
	opStore   = 0x23
	opOp      = 0x33
	opLui     = 0x37
	opOp32    = 0x3b
	opBranch  = 0x63
	opJalr    = 0x67
	opJal     = 0x6f
	opSystem  = 0x73
)

// Lui loads the upper 20 bits of upper; its low 12 bits must be zero.
func (p *Program) Lui(rd Register, upper int32) *Program {
	return p.Word(EncodeUType(opLui, r(rd), uint32(upper)))
}

func (p *Program) Auipc(rd Register, upper int32) *Program {
	return p.Word(EncodeUType(opAuipc, r(rd), uint32(upper)))
}

func (p *Program) Jal(rd Register, offset int32) *Program {
	return p.Word(EncodeJType(opJal, r(rd), offset))
}

func (p *Program) Jalr(rd, rs1 Register, imm int32) *Program {
	return p.Word(EncodeIType(opJalr, r(rd), 0, r(rs1), imm))
}

func (p *Program) Beq(rs1, rs2 Register, offset int32) *Program {
	return p.Word(EncodeBType(opBranch, 0, r(rs1), r(rs2), offset))
}

func (p *Program) Bne(rs1, rs2 Register, offset int32) *Program {
	return p.Word(EncodeBType(opBranch, 1, r(rs1), r(rs2), offset))
}

func (p *Program) Ld(rd, rs1 Register, imm int32) *Program {
	return p.Word(EncodeIType(opLoad, r(rd), 3, r(rs1), imm))
}

func (p *Program) Sd(rs2, rs1 Register, imm int32) *Program {
	return p.Word(EncodeSType(opStore, 3, r(rs1), r(rs2), imm))
}

func (p *Program) Addi(rd, rs1 Register, imm int32) *Program {
	return p.Word(EncodeIType(opOpImm, r(rd), 0, r(rs1), imm))
}

func (p *Program) Addiw(rd, rs1 Register, imm int32) *Program {
	return p.Word(EncodeIType(opOpImm32, r(rd), 0, r(rs1), imm))
}

func (p *Program) Slli(rd, rs1 Register, shamt int32) *Program {
	return p.Word(EncodeIType(opOpImm, r(rd), 1, r(rs1), shamt&0x3f))
}

func (p *Program) op(funct7, funct3 uint32, rd, rs1, rs2 Register) *Program {
	return p.Word(EncodeRType(opOp, r(rd), funct3, r(rs1), r(rs2), funct7))
}

func (p *Program) Add(rd, rs1, rs2 Register) *Program    { return p.op(0x00, 0, rd, rs1, rs2) }
func (p *Program) Sub(rd, rs1, rs2 Register) *Program    { return p.op(0x20, 0, rd, rs1, rs2) }
func (p *Program) Xor(rd, rs1, rs2 Register) *Program    { return p.op(0x00, 4, rd, rs1, rs2) }
func (p *Program) Or(rd, rs1, rs2 Register) *Program     { return p.op(0x00, 6, rd, rs1, rs2) }
func (p *Program) Mul(rd, rs1, rs2 Register) *Program    { return p.op(0x01, 0, rd, rs1, rs2) }
func (p *Program) Mulh(rd, rs1, rs2 Register) *Program   { return p.op(0x01, 1, rd, rs1, rs2) }
func (p *Program) Mulhsu(rd, rs1, rs2 Register) *Program { return p.op(0x01, 2, rd, rs1, rs2) }
func (p *Program) Mulhu(rd, rs1, rs2 Register) *Program  { return p.op(0x01, 3, rd, rs1, rs2) }
func (p *Program) Div(rd, rs1, rs2 Register) *Program    { return p.op(0x01, 4, rd, rs1, rs2) }
func (p *Program) Divu(rd, rs1, rs2 Register) *Program   { return p.op(0x01, 5, rd, rs1, rs2) }
func (p *Program) Rem(rd, rs1, rs2 Register) *Program    { return p.op(0x01, 6, rd, rs1, rs2) }
func (p *Program) Remu(rd, rs1, rs2 Register) *Program   { return p.op(0x01, 7, rd, rs1, rs2) }

func (p *Program) Addw(rd, rs1, rs2 Register) *Program {
	return p.Word(EncodeRType(opOp32, r(rd), 0, r(rs1), r(rs2), 0x00))
}

func (p *Program) Ecall() *Program {
	return p.Word(EncodeIType(opSystem, 0, 0, 0, 0))
}

// Li32 materializes a 32-bit sign-extended constant with the lui+addiw idiom.
func (p *Program) Li32(rd Register, v int32) *Program {
	hi, lo := SplitImm(v)
	return p.Lui(rd, hi).Addiw(rd, rd, lo)
}

// Li64 materializes an arbitrary 64-bit constant: the high word with Li32,
// then the low word in two shifted 11-bit and one 10-bit chunk.
func (p *Program) Li64(rd Register, v uint64) *Program {
	p.Li32(rd, int32(v>>32))
	lo := uint32(v)
	p.Slli(rd, rd, 11).Addi(rd, rd, int32(lo>>21&0x7ff))
	p.Slli(rd, rd, 11).Addi(rd, rd, int32(lo>>10&0x7ff))
	p.Slli(rd, rd, 10).Addi(rd, rd, int32(lo&0x3ff))
	return p
}

// FarCallAbs emits lui+jalr through link, calling the absolute address target.
func (p *Program) FarCallAbs(link Register, target int32) *Program {
	hi, lo := SplitImm(target)
	return p.Lui(link, hi).Jalr(link, link, lo)
}

// FarCallRel emits auipc+jalr through link, calling pc-relative offset.
func (p *Program) FarCallRel(link Register, offset int32) *Program {
	hi, lo := SplitImm(offset)
	return p.Auipc(link, hi).Jalr(link, link, lo)
}
