package machine

import (
	"fmt"

	"github.com/jam-duna/rvmop/rverrors"
	. "github.com/jam-duna/rvmop/rvm/instruction"
)

// handler executes inst, which was fetched at pc. m.pc already points past it.
type handler func(m *Machine, pc uint64, inst Instruction) error

var handlers [256]handler

func init() {
	handlers[LUI] = func(m *Machine, _ uint64, inst Instruction) error {
		u := Utype(inst)
		m.set(u.Rd(), uint64(u.Immediate()))
		return nil
	}
	handlers[AUIPC] = func(m *Machine, pc uint64, inst Instruction) error {
		u := Utype(inst)
		m.set(u.Rd(), pc+uint64(u.Immediate()))
		return nil
	}
	handlers[JAL] = func(m *Machine, pc uint64, inst Instruction) error {
		u := Utype(inst)
		link := m.pc
		if err := m.jump(pc + uint64(u.Immediate())); err != nil {
			return err
		}
		m.set(u.Rd(), link)
		return nil
	}
	handlers[JALR] = func(m *Machine, _ uint64, inst Instruction) error {
		i := Itype(inst)
		link := m.pc
		if err := m.jump((m.register[i.Rs1()] + uint64(i.Immediate())) &^ 1); err != nil {
			return err
		}
		m.set(i.Rd(), link)
		return nil
	}

	for code, cond := range map[Opcode]func(a, b uint64) bool{
		BEQ:  func(a, b uint64) bool { return a == b },
		BNE:  func(a, b uint64) bool { return a != b },
		BLT:  func(a, b uint64) bool { return int64(a) < int64(b) },
		BGE:  func(a, b uint64) bool { return int64(a) >= int64(b) },
		BLTU: func(a, b uint64) bool { return a < b },
		BGEU: func(a, b uint64) bool { return a >= b },
	} {
		handlers[code] = branch(cond)
	}

	handlers[LB] = load(1, true)
	handlers[LH] = load(2, true)
	handlers[LW] = load(4, true)
	handlers[LD] = load(8, false)
	handlers[LBU] = load(1, false)
	handlers[LHU] = load(2, false)
	handlers[LWU] = load(4, false)
	handlers[SB] = store(1)
	handlers[SH] = store(2)
	handlers[SW] = store(4)
	handlers[SD] = store(8)

	handlers[ADDI] = opImm(func(a, imm uint64) uint64 { return a + imm })
	handlers[SLTI] = opImm(func(a, imm uint64) uint64 { return bool2u(int64(a) < int64(imm)) })
	handlers[SLTIU] = opImm(func(a, imm uint64) uint64 { return bool2u(a < imm) })
	handlers[XORI] = opImm(func(a, imm uint64) uint64 { return a ^ imm })
	handlers[ORI] = opImm(func(a, imm uint64) uint64 { return a | imm })
	handlers[ANDI] = opImm(func(a, imm uint64) uint64 { return a & imm })
	handlers[SLLI] = opImm(func(a, imm uint64) uint64 { return a << (imm & 63) })
	handlers[SRLI] = opImm(func(a, imm uint64) uint64 { return a >> (imm & 63) })
	handlers[SRAI] = opImm(func(a, imm uint64) uint64 { return uint64(int64(a) >> (imm & 63)) })

	handlers[ADDIW] = opImm(func(a, imm uint64) uint64 { return sext32(a + imm) })
	handlers[SLLIW] = opImm(func(a, imm uint64) uint64 { return sext32(a << (imm & 31)) })
	handlers[SRLIW] = opImm(func(a, imm uint64) uint64 { return sext32(uint64(uint32(a) >> (imm & 31))) })
	handlers[SRAIW] = opImm(func(a, imm uint64) uint64 { return uint64(int64(int32(a) >> (imm & 31))) })

	handlers[ADD] = op(func(a, b uint64) uint64 { return a + b })
	handlers[SUB] = op(func(a, b uint64) uint64 { return a - b })
	handlers[SLL] = op(func(a, b uint64) uint64 { return a << (b & 63) })
	handlers[SLT] = op(func(a, b uint64) uint64 { return bool2u(int64(a) < int64(b)) })
	handlers[SLTU] = op(func(a, b uint64) uint64 { return bool2u(a < b) })
	handlers[XOR] = op(func(a, b uint64) uint64 { return a ^ b })
	handlers[SRL] = op(func(a, b uint64) uint64 { return a >> (b & 63) })
	handlers[SRA] = op(func(a, b uint64) uint64 { return uint64(int64(a) >> (b & 63)) })
	handlers[OR] = op(func(a, b uint64) uint64 { return a | b })
	handlers[AND] = op(func(a, b uint64) uint64 { return a & b })

	handlers[ADDW] = op(func(a, b uint64) uint64 { return sext32(a + b) })
	handlers[SUBW] = op(func(a, b uint64) uint64 { return sext32(a - b) })
	handlers[SLLW] = op(func(a, b uint64) uint64 { return sext32(a << (b & 31)) })
	handlers[SRLW] = op(func(a, b uint64) uint64 { return sext32(uint64(uint32(a) >> (b & 31))) })
	handlers[SRAW] = op(func(a, b uint64) uint64 { return uint64(int64(int32(a) >> (b & 31))) })

	handlers[MUL] = op(func(a, b uint64) uint64 { return a * b })
	handlers[MULH] = op(mulh)
	handlers[MULHSU] = op(mulhsu)
	handlers[MULHU] = op(mulhu)
	handlers[DIV] = op(div)
	handlers[DIVU] = op(divu)
	handlers[REM] = op(rem)
	handlers[REMU] = op(remu)
	handlers[MULW] = op(func(a, b uint64) uint64 { return sext32(a * b) })
	handlers[DIVW] = op(func(a, b uint64) uint64 { return sext32(div(sext32(a), sext32(b))) })
	handlers[DIVUW] = op(func(a, b uint64) uint64 { return sext32(divu(uint64(uint32(a)), uint64(uint32(b)))) })
	handlers[REMW] = op(func(a, b uint64) uint64 { return sext32(rem(sext32(a), sext32(b))) })
	handlers[REMUW] = op(func(a, b uint64) uint64 { return sext32(remu(uint64(uint32(a)), uint64(uint32(b)))) })

	handlers[FENCE] = func(*Machine, uint64, Instruction) error { return nil }
	handlers[ECALL] = func(m *Machine, _ uint64, _ Instruction) error { return m.ecall() }
	handlers[EBREAK] = func(*Machine, uint64, Instruction) error {
		return fmt.Errorf("ebreak: %w", rverrors.ErrInvalidEcall)
	}

	handlers[FAR_JUMP_ABS] = func(m *Machine, _ uint64, inst Instruction) error {
		link := m.pc
		if err := m.jump(uint64(Utype(inst).Immediate()) &^ 1); err != nil {
			return err
		}
		m.set(RA, link)
		return nil
	}
	handlers[FAR_JUMP_REL] = func(m *Machine, pc uint64, inst Instruction) error {
		link := m.pc
		if err := m.jump((pc + uint64(Utype(inst).Immediate())) &^ 1); err != nil {
			return err
		}
		m.set(RA, link)
		return nil
	}
	handlers[LD_SIGN_EXTENDED_32_CONSTANT] = func(m *Machine, _ uint64, inst Instruction) error {
		u := Utype(inst)
		m.set(u.Rd(), uint64(u.Immediate()))
		return nil
	}
	handlers[WIDE_MUL] = wideOp(mulh, func(a, b uint64) uint64 { return a * b })
	handlers[WIDE_MULU] = wideOp(mulhu, func(a, b uint64) uint64 { return a * b })
	handlers[WIDE_DIV] = wideOp(div, rem)
	handlers[WIDE_DIVU] = wideOp(divu, remu)
}

func branch(cond func(a, b uint64) bool) handler {
	return func(m *Machine, pc uint64, inst Instruction) error {
		s := Stype(inst)
		if !cond(m.register[s.Rs1()], m.register[s.Rs2()]) {
			return nil
		}
		return m.jump(pc + uint64(s.Immediate()))
	}
}

func load(size int, signed bool) handler {
	return func(m *Machine, _ uint64, inst Instruction) error {
		i := Itype(inst)
		addr := m.register[i.Rs1()] + uint64(i.Immediate())
		var v uint64
		switch size {
		case 1:
			b, err := m.mem.Load8(addr)
			if err != nil {
				return err
			}
			v = uint64(b)
			if signed {
				v = uint64(int64(int8(b)))
			}
		case 2:
			h, err := m.mem.Load16(addr)
			if err != nil {
				return err
			}
			v = uint64(h)
			if signed {
				v = uint64(int64(int16(h)))
			}
		case 4:
			w, err := m.mem.Load32(addr)
			if err != nil {
				return err
			}
			v = uint64(w)
			if signed {
				v = sext32(v)
			}
		default:
			d, err := m.mem.Load64(addr)
			if err != nil {
				return err
			}
			v = d
		}
		m.set(i.Rd(), v)
		return nil
	}
}

func store(size int) handler {
	return func(m *Machine, _ uint64, inst Instruction) error {
		s := Stype(inst)
		addr := m.register[s.Rs1()] + uint64(s.Immediate())
		v := m.register[s.Rs2()]
		switch size {
		case 1:
			return m.mem.Store8(addr, uint8(v))
		case 2:
			return m.mem.Store16(addr, uint16(v))
		case 4:
			return m.mem.Store32(addr, uint32(v))
		default:
			return m.mem.Store64(addr, v)
		}
	}
}

func opImm(f func(a, imm uint64) uint64) handler {
	return func(m *Machine, _ uint64, inst Instruction) error {
		i := Itype(inst)
		m.set(i.Rd(), f(m.register[i.Rs1()], uint64(i.Immediate())))
		return nil
	}
}

func op(f func(a, b uint64) uint64) handler {
	return func(m *Machine, _ uint64, inst Instruction) error {
		r := Rtype(inst)
		m.set(r.Rd(), f(m.register[r.Rs1()], m.register[r.Rs2()]))
		return nil
	}
}

// wideOp reads both sources once, then writes rd and rd2 in that order.
func wideOp(first, second func(a, b uint64) uint64) handler {
	return func(m *Machine, _ uint64, inst Instruction) error {
		r := R4type(inst)
		a, b := m.register[r.Rs1()], m.register[r.Rs2()]
		hi, lo := first(a, b), second(a, b)
		m.set(r.Rd(), hi)
		m.set(r.Rd2(), lo)
		return nil
	}
}
