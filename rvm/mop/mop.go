// Package mop implements macro-operation fusion at decode time.
//
// A Decoder wraps a primitive decoder. When the instruction at pc is a fusion
// head it decodes the next instruction too, and if the pair forms one of the
// idioms in Patterns it returns a single synthetic instruction whose length
// covers both. Everything else passes through untouched. Decoding is stateless:
// nothing is cached between calls, so rewritten code is seen on the next call.
//
// The synthetic opcodes are an ABI with the executor; see package machine.
package mop

import (
	"github.com/jam-duna/rvmop/log"
	"github.com/jam-duna/rvmop/rvm/decoder"
	"github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/memory"
)

// Decoder is safe for concurrent use when raw is.
type Decoder struct {
	raw     decoder.Decoder
	enabled bool
}

// NewDecoder wraps raw. A disabled Decoder behaves exactly like raw.
func NewDecoder(raw decoder.Decoder, enabled bool) *Decoder {
	return &Decoder{raw: raw, enabled: enabled}
}

// NewDecoderForISA enables fusion iff isa advertises ISAMOP.
func NewDecoderForISA(raw decoder.Decoder, isa decoder.ISA) *Decoder {
	return NewDecoder(raw, isa.Has(decoder.ISAMOP))
}

func (d *Decoder) Enabled() bool {
	return d.enabled
}

// Raw returns the wrapped primitive decoder.
func (d *Decoder) Raw() decoder.Decoder {
	return d.raw
}

// Decode returns the instruction at pc, fused with its successor when legal.
// Errors from either primitive decode are returned as is.
func (d *Decoder) Decode(mem memory.Memory, pc uint64) (instruction.Instruction, error) {
	first, err := d.raw.Decode(mem, pc)
	if err != nil {
		return 0, err
	}
	if !d.enabled {
		return first, nil
	}
	candidates := heads[instruction.ExtractOpcode(first)]
	if !admits(candidates, first) {
		return first, nil
	}

	second, err := d.raw.Decode(mem, pc+uint64(instruction.Length(first)))
	if err != nil {
		return 0, err
	}
	op := instruction.ExtractOpcode(second)
	for _, p := range candidates {
		if p.Second != op || !p.Legal(first, second) {
			continue
		}
		fused := p.Fuse(first, second)
		log.Trace(log.MopMonitoring, "fused", "pc", pc, "pattern", p.Name, "len", instruction.Length(fused))
		return fused, nil
	}
	return first, nil
}

// admits reports whether any candidate pattern survives the head-only check.
func admits(candidates []Pattern, first instruction.Instruction) bool {
	for _, p := range candidates {
		if p.headOK == nil || p.headOK(first) {
			return true
		}
	}
	return false
}

var (
	_ decoder.Decoder = (*Decoder)(nil)
	_ decoder.Unfused = (*Decoder)(nil)
)
