package mop

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jam-duna/rvmop/rverrors"
	"github.com/jam-duna/rvmop/rvm/asm"
	"github.com/jam-duna/rvmop/rvm/decoder"
	. "github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = 0x10000

func load(t *testing.T, p *asm.Program) *memory.Sparse {
	t.Helper()
	mem := memory.NewSparse()
	mem.LoadSegment(base, p.Bytes())
	return mem
}

// countingDecoder records every primitive decode it forwards.
type countingDecoder struct {
	inner decoder.Decoder
	calls atomic.Int64
	mu    sync.Mutex
	pcs   []uint64
}

func (c *countingDecoder) Decode(mem memory.Memory, pc uint64) (Instruction, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.pcs = append(c.pcs, pc)
	c.mu.Unlock()
	return c.inner.Decode(mem, pc)
}

// scriptedDecoder returns fixed words or errors per pc, ignoring memory.
type scriptedDecoder struct {
	words map[uint64]Instruction
	errs  map[uint64]error
}

func (s *scriptedDecoder) Decode(_ memory.Memory, pc uint64) (Instruction, error) {
	if err, ok := s.errs[pc]; ok {
		return 0, err
	}
	if w, ok := s.words[pc]; ok {
		return w, nil
	}
	return 0, rverrors.ErrInvalidInstruction
}

func fuseScripted(t *testing.T, first, second Instruction) (Instruction, *scriptedDecoder) {
	t.Helper()
	s := &scriptedDecoder{words: map[uint64]Instruction{
		0:                     first,
		uint64(Length(first)): second,
	}}
	got, err := NewDecoder(s, true).Decode(nil, 0)
	require.NoError(t, err)
	return got, s
}

func TestScenarioFarJumpAbs(t *testing.T) {
	const x = T1
	first := PackLength(Instruction(NewUtype(LUI, x, 0x1000)), 4)
	second := PackLength(Instruction(NewItype(JALR, RA, x, 0x20)), 4)

	got, _ := fuseScripted(t, first, second)
	u := Utype(got)
	assert.Equal(t, FAR_JUMP_ABS, u.Op())
	assert.Equal(t, x, u.Rd())
	assert.Equal(t, int64(0x1020), u.Immediate())
	assert.Equal(t, uint8(8), Length(got))
}

func TestScenarioWideMul(t *testing.T) {
	first := PackLength(Instruction(NewRtype(MULH, 3, 1, 2)), 4)
	second := PackLength(Instruction(NewRtype(MUL, 4, 1, 2)), 4)

	got, _ := fuseScripted(t, first, second)
	r := R4type(got)
	assert.Equal(t, WIDE_MUL, r.Op())
	assert.Equal(t, Register(3), r.Rd())
	assert.Equal(t, Register(1), r.Rs1())
	assert.Equal(t, Register(2), r.Rs2())
	assert.Equal(t, Register(4), r.Rd2())
	assert.Equal(t, uint8(8), Length(got))
}

func TestScenarioHazard(t *testing.T) {
	first := PackLength(Instruction(NewRtype(MULH, 1, 1, 2)), 4)
	second := PackLength(Instruction(NewRtype(MUL, 4, 1, 2)), 4)

	got, _ := fuseScripted(t, first, second)
	assert.Equal(t, first, got)
}

func TestScenarioHeadWithoutPartner(t *testing.T) {
	mem := load(t, asm.New().
		Lui(T1, 0x1000).
		Addi(T1, T1, 0x20))
	c := &countingDecoder{inner: decoder.NewRawDecoder(false)}
	got, err := NewDecoder(c, true).Decode(mem, base)
	require.NoError(t, err)

	raw, err := decoder.NewRawDecoder(false).Decode(mem, base)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
	assert.Equal(t, uint8(4), Length(got))
	assert.Equal(t, []uint64{base, base + 4}, c.pcs)
}

func TestFusionTable(t *testing.T) {
	tests := []struct {
		name  string
		prog  *asm.Program
		check func(t *testing.T, got Instruction)
	}{
		{"lui+jalr", asm.New().Lui(T1, 0x1000).Jalr(RA, T1, 0x20), func(t *testing.T, got Instruction) {
			assert.Equal(t, FAR_JUMP_ABS, Utype(got).Op())
			assert.Equal(t, T1, Utype(got).Rd())
			assert.Equal(t, int64(0x1020), Utype(got).Immediate())
		}},
		{"lui+jalr far target", asm.New().FarCallAbs(RA, 0x7fffffff), func(t *testing.T, got Instruction) {
			assert.Equal(t, FAR_JUMP_ABS, Utype(got).Op())
			assert.Equal(t, RA, Utype(got).Rd())
			assert.Equal(t, int64(-0x80000001), Utype(got).Immediate())
		}},
		{"auipc+jalr", asm.New().Auipc(T2, -0x2000).Jalr(RA, T2, -8), func(t *testing.T, got Instruction) {
			assert.Equal(t, FAR_JUMP_REL, Utype(got).Op())
			assert.Equal(t, T2, Utype(got).Rd())
			assert.Equal(t, int64(-0x2008), Utype(got).Immediate())
		}},
		{"lui+addiw", asm.New().Li32(A0, 0x12345678), func(t *testing.T, got Instruction) {
			assert.Equal(t, LD_SIGN_EXTENDED_32_CONSTANT, Utype(got).Op())
			assert.Equal(t, A0, Utype(got).Rd())
			assert.Equal(t, int64(0x12345678), Utype(got).Immediate())
		}},
		{"lui+addiw wraps to 32 bits", asm.New().Li32(A1, 0x7fffffff), func(t *testing.T, got Instruction) {
			assert.Equal(t, LD_SIGN_EXTENDED_32_CONSTANT, Utype(got).Op())
			assert.Equal(t, int64(0x7fffffff), Utype(got).Immediate())
		}},
		{"lui+addiw negative", asm.New().Li32(A1, -0x12345678), func(t *testing.T, got Instruction) {
			assert.Equal(t, int64(-0x12345678), Utype(got).Immediate())
		}},
		{"mulh+mul", asm.New().Mulh(3, 1, 2).Mul(4, 1, 2), wantWide(WIDE_MUL, 3, 1, 2, 4)},
		{"mulhu+mul", asm.New().Mulhu(5, 6, 7).Mul(8, 6, 7), wantWide(WIDE_MULU, 5, 6, 7, 8)},
		{"div+rem", asm.New().Div(10, 11, 12).Rem(13, 11, 12), wantWide(WIDE_DIV, 10, 11, 12, 13)},
		{"divu+remu", asm.New().Divu(A0, A1, A2).Remu(A3, A1, A2), wantWide(WIDE_DIVU, A0, A1, A2, A3)},
	}
	d := NewDecoder(decoder.NewRawDecoder(false), true)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Decode(load(t, tc.prog), base)
			require.NoError(t, err)
			assert.Equal(t, uint8(8), Length(got))
			assert.True(t, IsSynthetic(ExtractOpcode(got)))
			tc.check(t, got)
		})
	}
}

func wantWide(op Opcode, rd, rs1, rs2, rd2 Register) func(*testing.T, Instruction) {
	return func(t *testing.T, got Instruction) {
		r := R4type(got)
		assert.Equal(t, op, r.Op())
		assert.Equal(t, rd, r.Rd())
		assert.Equal(t, rs1, r.Rs1())
		assert.Equal(t, rs2, r.Rs2())
		assert.Equal(t, rd2, r.Rd2())
	}
}

func TestLengthSum(t *testing.T) {
	tests := []struct {
		name string
		prog *asm.Program
		op   Opcode
		want uint8
	}{
		{"lui + c.jalr", asm.New().Lui(T0, 0x4000).CJalr(T0), FAR_JUMP_ABS, 6},
		{"c.lui + jalr", asm.New().CLui(RA, 0x4000).Jalr(RA, RA, 12), FAR_JUMP_ABS, 6},
		{"c.lui + c.addiw", asm.New().CLui(A5, 0x1000).CAddiw(A5, -1), LD_SIGN_EXTENDED_32_CONSTANT, 4},
		{"auipc + c.jalr", asm.New().Auipc(A0, 0).CJalr(A0), FAR_JUMP_REL, 6},
		{"mulh + mul", asm.New().Mulh(3, 1, 2).Mul(4, 1, 2), WIDE_MUL, 8},
	}
	d := NewDecoder(decoder.NewRawDecoder(true), true)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Decode(load(t, tc.prog), base)
			require.NoError(t, err)
			assert.Equal(t, tc.op, ExtractOpcode(got))
			assert.Equal(t, tc.want, Length(got))
			assert.Equal(t, tc.want, UnpackLength(PackLength(got, Length(got))))
			assert.Equal(t, len(tc.prog.Bytes()), int(Length(got)))
		})
	}

	got, err := d.Decode(load(t, asm.New().CLui(A5, 0x1000).CAddiw(A5, -1)), base)
	require.NoError(t, err)
	assert.Equal(t, int64(0xfff), Utype(got).Immediate())
}

func TestPassThroughWithoutLookahead(t *testing.T) {
	tests := []struct {
		name string
		prog *asm.Program
	}{
		{"addi", asm.New().Addi(A0, A0, 1).Addi(A0, A0, 1)},
		{"mul", asm.New().Mul(4, 1, 2).Mulh(3, 1, 2)},
		{"rem", asm.New().Rem(4, 1, 2).Div(3, 1, 2)},
		{"jalr", asm.New().Jalr(RA, T1, 0)},
		{"jal", asm.New().Jal(RA, 16)},
		{"mulhsu", asm.New().Mulhsu(3, 1, 2).Mul(4, 1, 2)},
		{"ld", asm.New().Ld(A0, SP, 8)},
		{"ecall", asm.New().Ecall()},
		{"c.mv", asm.New().CMv(A0, A1)},
		{"hazard mulh rd=rs1", asm.New().Mulh(1, 1, 2).Mul(4, 1, 2)},
		{"hazard mulhu rd=rs2", asm.New().Mulhu(2, 1, 2).Mul(4, 1, 2)},
		{"hazard div rd=rs1", asm.New().Div(11, 11, 12).Rem(13, 11, 12)},
		{"hazard divu rd=rs2", asm.New().Divu(A2, A1, A2).Remu(A3, A1, A2)},
	}
	raw := decoder.NewRawDecoder(true)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mem := load(t, tc.prog)
			c := &countingDecoder{inner: raw}
			got, err := NewDecoder(c, true).Decode(mem, base)
			require.NoError(t, err)

			want, err := raw.Decode(mem, base)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, int64(1), c.calls.Load())
		})
	}
}

func TestMismatchReturnsHead(t *testing.T) {
	tests := []struct {
		name string
		prog *asm.Program
	}{
		{"lui+jalr other base", asm.New().Lui(T1, 0x1000).Jalr(RA, T2, 0x20)},
		{"lui+jalr no link", asm.New().Lui(T1, 0x1000).Jalr(Zero, T1, 0x20)},
		{"lui+jalr link in t0", asm.New().Lui(T1, 0x1000).Jalr(T0, T1, 0x20)},
		{"auipc+addiw", asm.New().Auipc(A0, 0x1000).Addiw(A0, A0, 1)},
		{"lui+addiw other rd", asm.New().Lui(A0, 0x1000).Addiw(A1, A0, 1)},
		{"lui+addiw other rs1", asm.New().Lui(A0, 0x1000).Addiw(A0, A1, 1)},
		{"lui+addi", asm.New().Lui(A0, 0x1000).Addi(A0, A0, 1)},
		{"mulh+mul swapped", asm.New().Mulh(3, 1, 2).Mul(4, 2, 1)},
		{"mulh+mulhu", asm.New().Mulh(3, 1, 2).Mulhu(4, 1, 2)},
		{"div+remu", asm.New().Div(3, 1, 2).Remu(4, 1, 2)},
		{"divu+rem", asm.New().Divu(3, 1, 2).Rem(4, 1, 2)},
		{"divu+remu other rs2", asm.New().Divu(3, 1, 2).Remu(4, 1, 5)},
	}
	raw := decoder.NewRawDecoder(false)
	d := NewDecoder(raw, true)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mem := load(t, tc.prog)
			got, err := d.Decode(mem, base)
			require.NoError(t, err)
			want, err := raw.Decode(mem, base)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, uint8(4), Length(got))
			assert.False(t, IsSynthetic(ExtractOpcode(got)))
		})
	}
}

func TestErrorsPropagateUnchanged(t *testing.T) {
	firstErr := &decoder.DecodeError{PC: 0, Err: rverrors.ErrInvalidInstruction}
	secondErr := &decoder.DecodeError{PC: 4, Err: rverrors.ErrMemOutOfBound}
	lui := PackLength(Instruction(NewUtype(LUI, T1, 0x1000)), 4)

	t.Run("first", func(t *testing.T) {
		s := &scriptedDecoder{errs: map[uint64]error{0: firstErr}}
		_, err := NewDecoder(s, true).Decode(nil, 0)
		require.Same(t, firstErr, err)
	})

	t.Run("second", func(t *testing.T) {
		s := &scriptedDecoder{words: map[uint64]Instruction{0: lui}, errs: map[uint64]error{4: secondErr}}
		_, err := NewDecoder(s, true).Decode(nil, 0)
		require.Same(t, secondErr, err)
	})

	t.Run("second not decoded for non-head", func(t *testing.T) {
		addi := PackLength(Instruction(NewItype(ADDI, A0, A0, 1)), 4)
		s := &scriptedDecoder{words: map[uint64]Instruction{0: addi}, errs: map[uint64]error{4: secondErr}}
		got, err := NewDecoder(s, true).Decode(nil, 0)
		require.NoError(t, err)
		assert.Equal(t, addi, got)
	})

	t.Run("disabled skips second", func(t *testing.T) {
		s := &scriptedDecoder{words: map[uint64]Instruction{0: lui}, errs: map[uint64]error{4: secondErr}}
		got, err := NewDecoder(s, false).Decode(nil, 0)
		require.NoError(t, err)
		assert.Equal(t, lui, got)
	})

	t.Run("head at end of memory", func(t *testing.T) {
		mem := memory.NewSparse()
		mem.LoadSegment(memory.PageSize-4, asm.New().Lui(T1, 0x1000).Bytes())
		_, err := NewDecoder(decoder.NewRawDecoder(true), true).Decode(mem, memory.PageSize-4)
		var de *decoder.DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, uint64(memory.PageSize), de.PC)
		assert.ErrorIs(t, err, rverrors.ErrMemOutOfBound)
	})
}

func TestDisabled(t *testing.T) {
	prog := asm.New().Li32(A0, 0x12345678)
	mem := load(t, prog)
	raw := decoder.NewRawDecoder(true)

	for _, d := range []*Decoder{
		NewDecoder(raw, false),
		NewDecoderForISA(raw, decoder.ISAIMC),
	} {
		assert.False(t, d.Enabled())
		got, err := d.Decode(mem, base)
		require.NoError(t, err)
		assert.Equal(t, LUI, ExtractOpcode(got))
		assert.Equal(t, uint8(4), Length(got))
	}

	d := NewDecoderForISA(raw, decoder.ISAIMC|decoder.ISAMOP)
	assert.True(t, d.Enabled())
	got, err := d.Decode(mem, base)
	require.NoError(t, err)
	assert.Equal(t, LD_SIGN_EXTENDED_32_CONSTANT, ExtractOpcode(got))
}

func TestDecodeIsPure(t *testing.T) {
	prog := asm.New().Mulhu(5, 6, 7).Mul(8, 6, 7).Lui(T1, 0x1000).Jalr(RA, T1, 4)
	mem := load(t, prog)
	d := NewDecoder(decoder.NewRawDecoder(true), true)

	for _, pc := range []uint64{base, base + 4, base + 8, base + 12} {
		a, errA := d.Decode(mem, pc)
		b, errB := d.Decode(mem, pc)
		assert.Equal(t, errA, errB)
		assert.Equal(t, a, b)
	}
	for i, want := range prog.Bytes() {
		got, err := mem.Load8(base + uint64(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSelfModifyingCode(t *testing.T) {
	mem := load(t, asm.New().Lui(T1, 0x1000).Jalr(RA, T1, 0x20))
	d := NewDecoder(decoder.NewRawDecoder(false), true)

	got, err := d.Decode(mem, base)
	require.NoError(t, err)
	assert.Equal(t, FAR_JUMP_ABS, ExtractOpcode(got))

	patch := asm.New().Addi(T1, T1, 0x20).Bytes()
	mem.LoadSegment(base+4, patch)
	got, err = d.Decode(mem, base)
	require.NoError(t, err)
	assert.Equal(t, LUI, ExtractOpcode(got))
	assert.Equal(t, uint8(4), Length(got))
}

func TestConcurrentDecode(t *testing.T) {
	prog := asm.New().
		Mulh(3, 1, 2).Mul(4, 1, 2).
		Li32(A0, -7).
		Addi(A0, A0, 1).
		FarCallRel(RA, 0x100)
	mem := load(t, prog)
	d := NewDecoder(decoder.NewRawDecoder(true), true)

	pcs := []uint64{base, base + 8, base + 16, base + 20}
	want := make([]Instruction, len(pcs))
	for i, pc := range pcs {
		w, err := d.Decode(mem, pc)
		require.NoError(t, err)
		want[i] = w
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				i := n % len(pcs)
				got, err := d.Decode(mem, pcs[i])
				if !assert.NoError(t, err) || !assert.Equal(t, want[i], got) {
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestPatterns(t *testing.T) {
	ps := Patterns()
	require.Len(t, ps, 7)
	for _, p := range ps {
		assert.True(t, IsHead(p.Head), p.Name)
		assert.True(t, IsSynthetic(p.Fused), p.Name)
	}
	ps[0].Name = "changed"
	assert.Equal(t, "lui+jalr", Patterns()[0].Name)

	for _, op := range []Opcode{ADDI, JALR, MUL, REM, REMU, MULHSU, FAR_JUMP_ABS} {
		assert.False(t, IsHead(op), op.String())
	}
}

func TestDecodeAt(t *testing.T) {
	mem := load(t, asm.New().
		Lui(A0, 0x1000).
		Half(0x0000).
		Ecall())
	dec := NewDecoder(decoder.NewRawDecoder(true), true)

	// the fused decode fails on the successor
	_, err := dec.Decode(mem, base)
	var de *decoder.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, uint64(base+4), de.PC)

	got, err := decoder.DecodeAt(dec, mem, base)
	require.NoError(t, err)
	assert.Equal(t, LUI, ExtractOpcode(got))
	assert.Equal(t, uint8(4), Length(got))

	_, err = decoder.DecodeAt(dec, mem, base+4)
	require.True(t, errors.As(err, &de))
	assert.Equal(t, uint64(base+4), de.PC)
	assert.ErrorIs(t, err, rverrors.ErrInvalidInstruction)

	got, err = decoder.DecodeAt(dec, mem, base+6)
	require.NoError(t, err)
	assert.Equal(t, ECALL, ExtractOpcode(got))

	// a decoder that cannot be unwrapped keeps its error
	s := &scriptedDecoder{errs: map[uint64]error{0: &decoder.DecodeError{PC: 4, Err: rverrors.ErrMemOutOfBound}}}
	_, err = decoder.DecodeAt(s, nil, 0)
	assert.ErrorIs(t, err, rverrors.ErrMemOutOfBound)
}

func TestZeroDestinationHeadFuses(t *testing.T) {
	// the head's result is discarded when run alone, but the pair still fuses
	first := PackLength(Instruction(NewUtype(AUIPC, Zero, 0x2000)), 4)
	second := PackLength(Instruction(NewItype(JALR, RA, Zero, 0x10)), 4)

	got, _ := fuseScripted(t, first, second)
	u := Utype(got)
	assert.Equal(t, FAR_JUMP_REL, u.Op())
	assert.Equal(t, Zero, u.Rd())
	assert.Equal(t, int64(0x2010), u.Immediate())
}
