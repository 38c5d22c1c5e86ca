// Package machine is a small RV64IMC interpreter that consumes decoded
// instruction words, including the synthetic opcodes produced by macro-op
// fusion. It is the reference for the decode/execute ABI:
//
//	FAR_JUMP_ABS rd, imm         link = pc+len; pc = imm &^ 1; ra = link
//	FAR_JUMP_REL rd, imm         link = pc+len; pc = (pc+imm) &^ 1; ra = link
//	LD_SIGN_EXTENDED_32_CONSTANT rd = imm
//	WIDE_MUL(U) rd, rs1, rs2, rd2   rd = high64(rs1*rs2); rd2 = low64(rs1*rs2)
//	WIDE_DIV(U) rd, rs1, rs2, rd2   rd = rs1/rs2; rd2 = rs1%rs2
//
// Wide ops read both sources before writing rd, then rd2. The register that
// the jump idioms route the target through is not written. A jump head whose
// rd is x0 still fuses: auipc x0, hi; jalr ra, lo(x0) jumps to lo when run as
// two instructions but to pc+hi+lo when fused.
package machine

import (
	"fmt"

	"github.com/jam-duna/rvmop/log"
	"github.com/jam-duna/rvmop/rverrors"
	"github.com/jam-duna/rvmop/rvm/decoder"
	"github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/memory"
	"github.com/jam-duna/rvmop/rvm/mop"
)

const (
	ISAIMC = decoder.ISAIMC
	ISAMOP = decoder.ISAMOP
)

const (
	DefaultBase = 0x10000
	StackTop    = 0x40000000
	StackSize   = 64 << 10

	// SyscallExit is the a7 value of the exit environment call; a0 is the code.
	SyscallExit = 93
)

type Machine struct {
	register [instruction.RegisterCount]uint64
	pc       uint64
	mem      *memory.Sparse
	dec      decoder.Decoder
	isa      decoder.ISA

	cycles   uint64
	exited   bool
	exitCode uint64
	trace    bool
}

// New returns a machine over mem that starts at entry. Fusion is used iff isa
// has ISAMOP.
func New(isa decoder.ISA, mem *memory.Sparse, entry uint64) *Machine {
	raw := decoder.NewRawDecoderForISA(isa)
	return NewWithDecoder(isa, mop.NewDecoderForISA(raw, isa), mem, entry)
}

// NewWithDecoder lets callers supply their own instruction source.
func NewWithDecoder(isa decoder.ISA, dec decoder.Decoder, mem *memory.Sparse, entry uint64) *Machine {
	return &Machine{
		pc:    entry,
		mem:   mem,
		dec:   dec,
		isa:   isa,
		trace: log.IsModuleEnabled(log.MachineMonitoring),
	}
}

// Load maps code at base plus a stack below StackTop and returns a machine
// ready to run from base.
func Load(isa decoder.ISA, code []byte, base uint64) *Machine {
	mem := memory.NewSparse()
	mem.LoadSegment(base, code)
	mem.Map(StackTop-StackSize, StackSize)
	m := New(isa, mem, base)
	m.register[instruction.SP] = StackTop
	return m
}

func (m *Machine) PC() uint64             { return m.pc }
func (m *Machine) Cycles() uint64         { return m.cycles }
func (m *Machine) Memory() *memory.Sparse { return m.mem }
func (m *Machine) Decoder() decoder.Decoder {
	return m.dec
}

// Exited reports whether the program made the exit call, and its code.
func (m *Machine) Exited() (bool, uint64) {
	return m.exited, m.exitCode
}

func (m *Machine) Register(r instruction.Register) uint64 {
	return m.register[r&31]
}

// Registers returns a copy of the register file.
func (m *Machine) Registers() [instruction.RegisterCount]uint64 {
	return m.register
}

func (m *Machine) SetRegister(r instruction.Register, v uint64) {
	m.set(r, v)
}

func (m *Machine) set(r instruction.Register, v uint64) {
	if r != instruction.Zero {
		m.register[r&31] = v
	}
}

// Step executes one decoded instruction, which for a fused pair covers both.
func (m *Machine) Step() error {
	if m.exited {
		return nil
	}
	pc := m.pc
	inst, err := m.dec.Decode(m.mem, pc)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	op := instruction.ExtractOpcode(inst)
	h := handlers[op]
	if h == nil {
		return fmt.Errorf("execute %s at %#x: %w", op, pc, rverrors.ErrUnknownOpcode)
	}
	if m.trace {
		log.Trace(log.MachineMonitoring, "step", "pc", pc, "op", op, "len", instruction.Length(inst))
	}
	m.pc = pc + uint64(instruction.Length(inst))
	if err := h(m, pc, inst); err != nil {
		m.pc = pc
		return fmt.Errorf("execute %s at %#x: %w", op, pc, err)
	}
	m.cycles++
	return nil
}

// Run steps until the program exits or maxCycles steps have run. A zero
// maxCycles means no limit.
func (m *Machine) Run(maxCycles uint64) (uint64, error) {
	for !m.exited {
		if maxCycles != 0 && m.cycles >= maxCycles {
			return 0, fmt.Errorf("after %d cycles at %#x: %w", m.cycles, m.pc, rverrors.ErrCyclesExceeded)
		}
		if err := m.Step(); err != nil {
			log.Debug(log.MachineMonitoring, "fault", "pc", m.pc, "cycles", m.cycles, "err", err)
			return 0, err
		}
	}
	log.Debug(log.MachineMonitoring, "exit", "code", m.exitCode, "cycles", m.cycles)
	return m.exitCode, nil
}

// jump moves pc to target, which must be aligned for the enabled ISA.
func (m *Machine) jump(target uint64) error {
	align := uint64(4)
	if m.isa.Has(ISAIMC) {
		align = 2
	}
	if target%align != 0 {
		return fmt.Errorf("target %#x: %w", target, rverrors.ErrMisalignedJump)
	}
	m.pc = target
	return nil
}

func (m *Machine) ecall() error {
	switch n := m.register[instruction.A7]; n {
	case SyscallExit:
		m.exited = true
		m.exitCode = m.register[instruction.A0]
		return nil
	default:
		return fmt.Errorf("syscall %d: %w", n, rverrors.ErrInvalidEcall)
	}
}
