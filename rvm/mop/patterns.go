package mop

import (
	. "github.com/jam-duna/rvmop/rvm/instruction"
	"golang.org/x/exp/slices"
)

// Pattern is one fusible (head, second) pair.
type Pattern struct {
	Name   string
	Head   Opcode
	Second Opcode
	Fused  Opcode

	// headOK is the part of the legality predicate that only looks at the head.
	// It is checked before the second instruction is decoded.
	headOK func(first Instruction) bool
	legal  func(first, second Instruction) bool
	build  func(fused Opcode, first, second Instruction) Instruction
}

// Legal reports whether first and second may be fused. The opcodes are assumed
// to already match Head and Second.
func (p Pattern) Legal(first, second Instruction) bool {
	if p.headOK != nil && !p.headOK(first) {
		return false
	}
	return p.legal(first, second)
}

// Fuse builds the synthetic word for a legal pair. Its length is the sum of
// both source lengths.
func (p Pattern) Fuse(first, second Instruction) Instruction {
	return PackLength(p.build(p.Fused, first, second), Length(first)+Length(second))
}

var patterns = []Pattern{
	{Name: "lui+jalr", Head: LUI, Second: JALR, Fused: FAR_JUMP_ABS, legal: linksThroughHead, build: jumpTarget},
	{Name: "auipc+jalr", Head: AUIPC, Second: JALR, Fused: FAR_JUMP_REL, legal: linksThroughHead, build: jumpTarget},
	{Name: "lui+addiw", Head: LUI, Second: ADDIW, Fused: LD_SIGN_EXTENDED_32_CONSTANT, legal: addsInPlace, build: constant32},
	{Name: "mulh+mul", Head: MULH, Second: MUL, Fused: WIDE_MUL, headOK: destDisjoint, legal: sameSources, build: wide},
	{Name: "mulhu+mul", Head: MULHU, Second: MUL, Fused: WIDE_MULU, headOK: destDisjoint, legal: sameSources, build: wide},
	{Name: "div+rem", Head: DIV, Second: REM, Fused: WIDE_DIV, headOK: destDisjoint, legal: sameSources, build: wide},
	{Name: "divu+remu", Head: DIVU, Second: REMU, Fused: WIDE_DIVU, headOK: destDisjoint, legal: sameSources, build: wide},
}

// heads indexes patterns by head opcode; a nil entry is not a fusion head.
var heads [256][]Pattern

func init() {
	for _, p := range patterns {
		heads[p.Head] = append(heads[p.Head], p)
	}
}

// Patterns returns a copy of the fusion table.
func Patterns() []Pattern {
	return slices.Clone(patterns)
}

// IsHead reports whether op starts at least one pattern.
func IsHead(op Opcode) bool {
	return heads[op] != nil
}

// jalr consumes the register the head defined and links through RA.
func linksThroughHead(first, second Instruction) bool {
	j := Itype(second)
	return j.Rs1() == Utype(first).Rd() && j.Rd() == RA
}

func addsInPlace(first, second Instruction) bool {
	a := Itype(second)
	return a.Rs1() == a.Rd() && a.Rd() == Utype(first).Rd()
}

// destDisjoint rejects heads that overwrite one of their own sources; the
// literal second instruction would read the clobbered value.
func destDisjoint(first Instruction) bool {
	r := Rtype(first)
	return r.Rd() != r.Rs1() && r.Rd() != r.Rs2()
}

func sameSources(first, second Instruction) bool {
	a, b := Rtype(first), Rtype(second)
	return a.Rs1() == b.Rs1() && a.Rs2() == b.Rs2()
}

func jumpTarget(fused Opcode, first, second Instruction) Instruction {
	imm := Utype(first).Immediate() + Itype(second).Immediate()
	return Instruction(NewUtype(fused, Utype(first).Rd(), imm))
}

// constant32 keeps the value addiw leaves behind: the 32-bit sum, sign-extended.
func constant32(fused Opcode, first, second Instruction) Instruction {
	imm := int32(Utype(first).Immediate() + Itype(second).Immediate())
	return Instruction(NewUtype(fused, Utype(first).Rd(), int64(imm)))
}

func wide(fused Opcode, first, second Instruction) Instruction {
	h := Rtype(first)
	return Instruction(NewR4type(fused, h.Rd(), h.Rs1(), h.Rs2(), Rtype(second).Rd()))
}
