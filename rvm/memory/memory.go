// Package memory provides the byte-addressable memory collaborator the decoders
// fetch instructions from.
package memory

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jam-duna/rvmop/rverrors"
)

// Memory is what an instruction decoder needs: halfword instruction fetches.
// Implementations report unmapped addresses with rverrors.ErrMemOutOfBound and
// odd addresses with rverrors.ErrMemUnaligned.
type Memory interface {
	ExecuteLoad16(addr uint64) (uint16, error)
}

const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

type page [PageSize]byte

// Sparse is a paged memory that only backs pages that were mapped. It is safe
// for concurrent use, so a running program may rewrite its own code while
// another goroutine decodes it.
type Sparse struct {
	mu    sync.RWMutex
	pages map[uint64]*page
}

func NewSparse() *Sparse {
	return &Sparse{pages: make(map[uint64]*page)}
}

// Map backs every page overlapping [addr, addr+size) with zeroed memory.
// Already mapped pages keep their contents.
func (m *Sparse) Map(addr, size uint64) {
	if size == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := addr >> PageShift; p <= (addr+size-1)>>PageShift; p++ {
		if _, ok := m.pages[p]; !ok {
			m.pages[p] = new(page)
		}
	}
}

// LoadSegment maps and fills [addr, addr+len(data)). Used by program loaders.
func (m *Sparse) LoadSegment(addr uint64, data []byte) {
	m.Map(addr, uint64(len(data)))
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range data {
		a := addr + uint64(i)
		m.pages[a>>PageShift][a&(PageSize-1)] = b
	}
}

func (m *Sparse) read(addr uint64, buf []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range buf {
		a := addr + uint64(i)
		p, ok := m.pages[a>>PageShift]
		if !ok {
			return fmt.Errorf("load %d bytes at %#x: %w", len(buf), addr, rverrors.ErrMemOutOfBound)
		}
		buf[i] = p[a&(PageSize-1)]
	}
	return nil
}

func (m *Sparse) write(addr uint64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// check the whole range first so a failed store leaves memory untouched
	for i := range buf {
		if _, ok := m.pages[(addr+uint64(i))>>PageShift]; !ok {
			return fmt.Errorf("store %d bytes at %#x: %w", len(buf), addr, rverrors.ErrMemOutOfBound)
		}
	}
	for i, b := range buf {
		a := addr + uint64(i)
		m.pages[a>>PageShift][a&(PageSize-1)] = b
	}
	return nil
}

// ExecuteLoad16 fetches instruction bits. Data loads and stores may be
// unaligned; instruction fetches may not.
func (m *Sparse) ExecuteLoad16(addr uint64) (uint16, error) {
	if addr&1 != 0 {
		return 0, fmt.Errorf("fetch at %#x: %w", addr, rverrors.ErrMemUnaligned)
	}
	return m.Load16(addr)
}

func (m *Sparse) Load8(addr uint64) (uint8, error) {
	var b [1]byte
	if err := m.read(addr, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Sparse) Load16(addr uint64) (uint16, error) {
	var b [2]byte
	if err := m.read(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (m *Sparse) Load32(addr uint64) (uint32, error) {
	var b [4]byte
	if err := m.read(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (m *Sparse) Load64(addr uint64) (uint64, error) {
	var b [8]byte
	if err := m.read(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (m *Sparse) Store8(addr uint64, v uint8) error {
	return m.write(addr, []byte{v})
}

func (m *Sparse) Store16(addr uint64, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return m.write(addr, b[:])
}

func (m *Sparse) Store32(addr uint64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.write(addr, b[:])
}

func (m *Sparse) Store64(addr uint64, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return m.write(addr, b[:])
}
