package disasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/jam-duna/rvmop/rvm/decoder"
	"github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/memory"
	"golang.org/x/arch/riscv64/riscv64asm"
)

// Reader is the memory a listing is taken from.
type Reader interface {
	memory.Memory
	Load8(addr uint64) (uint8, error)
}

// Line is one decoded word of a listing. For an undecodable address Err is
// set and the line covers 2 bytes.
type Line struct {
	PC   uint64
	Raw  []byte
	Inst instruction.Instruction
	Text string
	// GNU is the reference disassembly of the raw bytes, one entry per
	// machine instruction the word covers.
	GNU []string
	Err error
}

func (l Line) Fused() bool {
	return l.Err == nil && instruction.IsSynthetic(instruction.ExtractOpcode(l.Inst))
}

// Listing decodes [start, end) with dec. Decode errors do not stop the
// listing; the bad halfword is reported and skipped.
func Listing(mem Reader, start, end uint64, dec decoder.Decoder) ([]Line, error) {
	var lines []Line
	for pc := start; pc < end; {
		inst, err := decoder.DecodeAt(dec, mem, pc)
		size := uint64(2)
		if err == nil {
			size = uint64(instruction.Length(inst))
		}
		raw, rerr := readBytes(mem, pc, size)
		if rerr != nil {
			return lines, fmt.Errorf("listing at %#x: %w", pc, rerr)
		}
		line := Line{PC: pc, Raw: raw, Inst: inst, Err: err}
		if err == nil {
			line.Text = Format(pc, inst)
			line.GNU = gnu(raw)
		}
		lines = append(lines, line)
		pc += size
	}
	return lines, nil
}

func readBytes(mem Reader, addr, n uint64) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, err := mem.Load8(addr + uint64(i))
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// gnu disassembles raw with x/arch, one instruction at a time.
func gnu(raw []byte) []string {
	var out []string
	for len(raw) > 0 {
		inst, err := riscv64asm.Decode(raw)
		if err != nil || inst.Len == 0 {
			out = append(out, "?")
			break
		}
		out = append(out, riscv64asm.GNUSyntax(inst))
		raw = raw[inst.Len:]
	}
	return out
}

// WriteListing prints lines as
//
//	0x010000: 37 13 00 00 67 80 03 02  8 far_jump_abs t1, 0x1020 ; lui t1,0x1 | jalr ra,32(t1)
func WriteListing(w io.Writer, lines []Line, withGNU bool) error {
	var sb strings.Builder
	for _, l := range lines {
		hex := make([]string, len(l.Raw))
		for i, b := range l.Raw {
			hex[i] = fmt.Sprintf("%02x", b)
		}
		if l.Err != nil {
			fmt.Fprintf(&sb, "0x%06x: %-24s    .half ; %v\n", l.PC, strings.Join(hex, " "), l.Err)
			continue
		}
		fmt.Fprintf(&sb, "0x%06x: %-24s %2d %s", l.PC, strings.Join(hex, " "), len(l.Raw), l.Text)
		if withGNU && len(l.GNU) > 0 {
			fmt.Fprintf(&sb, " ; %s", strings.Join(l.GNU, " | "))
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
