// Package instruction defines the 64-bit decoded instruction word shared by the
// primitive decoder, the macro-op fusion decoder and every execution backend.
//
// Layout of an Instruction (bit 0 is the least significant bit):
//
//	 0..7   opcode
//	 8..15  rd            (S-form: rs2)
//	16..23  rs1           (R, I, S, R4)
//	24..31  rs2           (R, R4)
//	32..39  rd2           (R4)
//	24..55  imm, int32    (I, S)
//	16..55  imm, 40 bits  (U)
//	56..59  length / 2
//
// Synthetic opcodes produced by macro-op fusion share this layout, so an executor
// never needs to know whether a word came from memory directly or from fusion.
package instruction

// Instruction is one decoded instruction word.
type Instruction uint64

// Register is an integer register index (x0..x31).
type Register = uint8

const (
	Zero Register = 0
	RA   Register = 1 // link register
	SP   Register = 2
	GP   Register = 3
	TP   Register = 4
	T0   Register = 5
	T1   Register = 6
	T2   Register = 7
	S0   Register = 8
	S1   Register = 9
	A0   Register = 10
	A1   Register = 11
	A2   Register = 12
	A3   Register = 13
	A4   Register = 14
	A5   Register = 15
	A6   Register = 16
	A7   Register = 17
)

// RegisterCount is the size of the integer register file.
const RegisterCount = 32

const (
	lengthShift = 56
	lengthMask  = 0xf

	// MaxLength is the largest byte length a word can carry.
	MaxLength = lengthMask << 1
)

// ExtractOpcode returns the opcode field of i.
func ExtractOpcode(i Instruction) Opcode {
	return Opcode(i & 0xff)
}

// PackLength returns i with its length field set to n bytes. n must be even and
// no larger than MaxLength; odd bits are dropped.
func PackLength(i Instruction, n uint8) Instruction {
	cleared := i &^ (Instruction(lengthMask) << lengthShift)
	return cleared | (Instruction(n>>1)&lengthMask)<<lengthShift
}

// UnpackLength returns the byte length carried in i.
func UnpackLength(i Instruction) uint8 {
	return uint8((i>>lengthShift)&lengthMask) << 1
}

// Length is the number of bytes the program counter advances past i.
func Length(i Instruction) uint8 {
	return UnpackLength(i)
}

// Rtype views an instruction as rd, rs1, rs2.
type Rtype Instruction

func NewRtype(op Opcode, rd, rs1, rs2 Register) Rtype {
	return Rtype(Instruction(op) |
		Instruction(rd)<<8 |
		Instruction(rs1)<<16 |
		Instruction(rs2)<<24)
}

func (i Rtype) Op() Opcode    { return ExtractOpcode(Instruction(i)) }
func (i Rtype) Rd() Register  { return Register(i >> 8) }
func (i Rtype) Rs1() Register { return Register(i >> 16) }
func (i Rtype) Rs2() Register { return Register(i >> 24) }

// Itype views an instruction as rd, rs1 and a signed 32-bit immediate.
type Itype Instruction

func NewItype(op Opcode, rd, rs1 Register, imm int32) Itype {
	return Itype(Instruction(op) |
		Instruction(rd)<<8 |
		Instruction(rs1)<<16 |
		Instruction(uint32(imm))<<24)
}

func (i Itype) Op() Opcode    { return ExtractOpcode(Instruction(i)) }
func (i Itype) Rd() Register  { return Register(i >> 8) }
func (i Itype) Rs1() Register { return Register(i >> 16) }

// Immediate returns the sign-extended immediate.
func (i Itype) Immediate() int64 {
	return int64(int32(uint32(i >> 24)))
}

// Stype is the store/branch layout: rs1, rs2 and a signed 32-bit immediate.
// It is an I-form with rs2 held in the rd slot.
type Stype Instruction

func NewStype(op Opcode, rs1, rs2 Register, imm int32) Stype {
	return Stype(NewItype(op, rs2, rs1, imm))
}

func (i Stype) Op() Opcode       { return ExtractOpcode(Instruction(i)) }
func (i Stype) Rs1() Register    { return Itype(i).Rs1() }
func (i Stype) Rs2() Register    { return Itype(i).Rd() }
func (i Stype) Immediate() int64 { return Itype(i).Immediate() }

// Utype views an instruction as rd and a signed 40-bit immediate.
type Utype Instruction

const utypeImmBits = 40

func NewUtype(op Opcode, rd Register, imm int64) Utype {
	const mask = (uint64(1) << utypeImmBits) - 1
	return Utype(Instruction(op) |
		Instruction(rd)<<8 |
		Instruction(uint64(imm)&mask)<<16)
}

func (i Utype) Op() Opcode   { return ExtractOpcode(Instruction(i)) }
func (i Utype) Rd() Register { return Register(i >> 8) }

// Immediate returns the sign-extended immediate.
func (i Utype) Immediate() int64 {
	return int64(uint64(i)<<8) >> 24
}

// R4type carries two destinations: rd and rd2, plus rs1 and rs2.
type R4type Instruction

func NewR4type(op Opcode, rd, rs1, rs2, rd2 Register) R4type {
	return R4type(Instruction(NewRtype(op, rd, rs1, rs2)) | Instruction(rd2)<<32)
}

func (i R4type) Op() Opcode    { return ExtractOpcode(Instruction(i)) }
func (i R4type) Rd() Register  { return Register(i >> 8) }
func (i R4type) Rs1() Register { return Register(i >> 16) }
func (i R4type) Rs2() Register { return Register(i >> 24) }
func (i R4type) Rd2() Register { return Register(i >> 32) }
