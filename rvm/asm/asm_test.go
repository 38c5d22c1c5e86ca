package asm

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(t *testing.T, p *Program) []uint32 {
	t.Helper()
	b := p.Bytes()
	require.Zero(t, len(b)%4)
	out := make([]uint32, 0, len(b)/4)
	for i := 0; i < len(b); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(b[i:]))
	}
	return out
}

func TestEncodings(t *testing.T) {
	tests := []struct {
		name string
		p    *Program
		want uint32
	}{
		{"addi a0, a0, 1", New().Addi(instruction.A0, instruction.A0, 1), 0x00150513},
		{"lui t1, 0x12345", New().Lui(instruction.T1, 0x12345000), 0x12345337},
		{"jalr ra, 0(t1)", New().Jalr(instruction.RA, instruction.T1, 0), 0x000300e7},
		{"mul a0, a1, a2", New().Mul(instruction.A0, instruction.A1, instruction.A2), 0x02c58533},
		{"sd a5, -16(sp)", New().Sd(instruction.A5, instruction.SP, -16), 0xfef13823},
		{"jal zero, 8", New().Jal(instruction.Zero, 8), 0x0080006f},
		{"bne a0, zero, -8", New().Bne(instruction.A0, instruction.Zero, -8), 0xfe051ce3},
		{"ecall", New().Ecall(), 0x00000073},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, []uint32{tc.want}, words(t, tc.p))
		})
	}
}

func TestCompressedEncodings(t *testing.T) {
	tests := []struct {
		name string
		p    *Program
		want uint16
	}{
		{"c.nop", New().CNop(), 0x0001},
		{"c.li a0, 7", New().CLi(instruction.A0, 7), 0x451d},
		{"c.jr ra", New().CJr(instruction.RA), 0x8082},
		{"c.mv a0, a1", New().CMv(instruction.A0, instruction.A1), 0x852e},
		{"c.ebreak", New().CEbreak(), 0x9002},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.p.Bytes()
			require.Len(t, b, 2)
			assert.Equal(t, tc.want, binary.LittleEndian.Uint16(b))
		})
	}
}

func TestSplitImm(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 0x7ff, 0x800, -0x800, -0x801, 0x12345678, math.MaxInt32, math.MinInt32} {
		hi, lo := SplitImm(v)
		assert.Zero(t, hi&0xfff, "%#x", v)
		assert.GreaterOrEqual(t, lo, int32(-2048), "%#x", v)
		assert.LessOrEqual(t, lo, int32(2047), "%#x", v)
		assert.Equal(t, v, hi+lo, "%#x", v)
	}

	hi, lo := SplitImm(math.MaxInt32)
	assert.Equal(t, int32(math.MinInt32), hi)
	assert.Equal(t, int32(-1), lo)
}

func TestLi64Length(t *testing.T) {
	p := New().Li64(instruction.A0, 0xfedcba9876543210)
	assert.Equal(t, 32, p.PC())
	w := words(t, p)
	assert.Equal(t, uint32(0x37), w[0]&0x7f)
	assert.Equal(t, uint32(0x1b), w[1]&0x7f)
}

func TestFarCall(t *testing.T) {
	w := words(t, New().FarCallRel(instruction.RA, 0x1234))
	require.Len(t, w, 2)
	assert.Equal(t, uint32(0x17), w[0]&0x7f)
	assert.Equal(t, uint32(0x1000), w[0]&0xfffff000)
	assert.Equal(t, uint32(0x234), w[1]>>20)
}
