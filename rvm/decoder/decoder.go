// Package decoder turns raw RV64IMC encodings into instruction words, one
// instruction at a time.
package decoder

import (
	"errors"
	"fmt"

	"github.com/jam-duna/rvmop/rverrors"
	"github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/memory"
)

// Decoder decodes the single instruction at pc. The returned word carries its
// natural byte length. Implementations must not mutate memory.
type Decoder interface {
	Decode(mem memory.Memory, pc uint64) (instruction.Instruction, error)
}

// DecodeError reports why the instruction at PC could not be decoded.
type DecodeError struct {
	PC  uint64
	Raw uint32
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode at %#x (raw %#08x): %v", e.PC, e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Unfused is implemented by decoders that wrap a single-instruction decoder and
// may need to look past pc to decode it.
type Unfused interface {
	Raw() Decoder
}

// DecodeAt decodes the instruction at pc for a linear walk over code. When dec
// fails at an address past pc, the instruction at pc is itself valid and is
// decoded again without lookahead, so the failure is reported where it is.
func DecodeAt(dec Decoder, mem memory.Memory, pc uint64) (instruction.Instruction, error) {
	inst, err := dec.Decode(mem, pc)
	if err == nil {
		return inst, nil
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.PC == pc {
		return inst, err
	}
	if u, ok := dec.(Unfused); ok {
		return u.Raw().Decode(mem, pc)
	}
	return inst, err
}

// RawDecoder decodes RV64I and M, plus the C extension when Compressed is set.
type RawDecoder struct {
	Compressed bool
}

func NewRawDecoder(compressed bool) *RawDecoder {
	return &RawDecoder{Compressed: compressed}
}

func (d *RawDecoder) Decode(mem memory.Memory, pc uint64) (instruction.Instruction, error) {
	lo, err := mem.ExecuteLoad16(pc)
	if err != nil {
		return 0, &DecodeError{PC: pc, Err: err}
	}
	if lo&0x3 != 0x3 {
		if !d.Compressed {
			return 0, &DecodeError{PC: pc, Raw: uint32(lo), Err: rverrors.ErrCompressedDisabled}
		}
		inst, ok := decodeCompressed(lo)
		if !ok {
			return 0, &DecodeError{PC: pc, Raw: uint32(lo), Err: rverrors.ErrInvalidInstruction}
		}
		return instruction.PackLength(inst, 2), nil
	}
	hi, err := mem.ExecuteLoad16(pc + 2)
	if err != nil {
		return 0, &DecodeError{PC: pc, Raw: uint32(lo), Err: err}
	}
	raw := uint32(lo) | uint32(hi)<<16
	inst, ok := decode32(raw)
	if !ok {
		return 0, &DecodeError{PC: pc, Raw: raw, Err: rverrors.ErrInvalidInstruction}
	}
	return instruction.PackLength(inst, 4), nil
}

// sext sign-extends the low bits of v.
func sext(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
