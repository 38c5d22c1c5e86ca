// Package asm assembles RV64IMC machine code. It is used to build programs for
// tests and demos; it does no label resolution beyond PC() bookkeeping.
package asm

import (
	"encoding/binary"

	"github.com/jam-duna/rvmop/rvm/instruction"
	"golang.org/x/exp/slices"
)

type Register = instruction.Register

// EncodeRType encodes an R-type instruction.
func EncodeRType(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// EncodeIType encodes an I-type instruction.
func EncodeIType(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// EncodeSType encodes an S-type instruction.
func EncodeSType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm & 0xfff)
	return (u>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1f)<<7 | opcode
}

// EncodeBType encodes a B-type instruction.
func EncodeBType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>12)&0x1)<<31 | ((u>>5)&0x3f)<<25 |
		rs2<<20 | rs1<<15 | funct3<<12 |
		((u>>1)&0xf)<<8 | ((u>>11)&0x1)<<7 | opcode
}

// EncodeUType encodes a U-type instruction; the low 12 bits of imm are dropped.
func EncodeUType(opcode, rd uint32, imm uint32) uint32 {
	return imm&0xfffff000 | rd<<7 | opcode
}

// EncodeJType encodes a J-type instruction.
func EncodeJType(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>20)&0x1)<<31 | ((u>>1)&0x3ff)<<21 |
		((u>>11)&0x1)<<20 | ((u>>12)&0xff)<<12 |
		rd<<7 | opcode
}

// SplitImm splits v into the upper part loaded by lui/auipc and the signed
// 12-bit remainder added by addi/addiw/jalr.
func SplitImm(v int32) (hi int32, lo int32) {
	hi = int32(uint32(v+0x800) & 0xfffff000)
	lo = v - hi
	return hi, lo
}

// Program accumulates encoded instructions.
type Program struct {
	code []byte
}

func New() *Program {
	return &Program{}
}

// PC is the offset the next instruction will be placed at.
func (p *Program) PC() int {
	return len(p.code)
}

func (p *Program) Bytes() []byte {
	return slices.Clone(p.code)
}

// Word appends a raw 32-bit encoding.
func (p *Program) Word(raw uint32) *Program {
	p.code = binary.LittleEndian.AppendUint32(p.code, raw)
	return p
}

// Half appends a raw 16-bit encoding.
func (p *Program) Half(raw uint16) *Program {
	p.code = binary.LittleEndian.AppendUint16(p.code, raw)
	return p
}

func r(reg Register) uint32 { return uint32(reg) }
