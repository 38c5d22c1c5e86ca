package memory

import (
	"testing"

	"github.com/jam-duna/rvmop/rverrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseLoadStore(t *testing.T) {
	m := NewSparse()
	m.Map(0x1000, 0x100)

	require.NoError(t, m.Store64(0x1008, 0x1122334455667788))
	v64, err := m.Load64(0x1008)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), v64)

	v32, err := m.Load32(0x1008)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x55667788), v32)

	v16, err := m.ExecuteLoad16(0x100a)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5566), v16)

	v8, err := m.Load8(0x100f)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x11), v8)
}

func TestSparseUnmapped(t *testing.T) {
	m := NewSparse()
	_, err := m.ExecuteLoad16(0x2000)
	assert.ErrorIs(t, err, rverrors.ErrMemOutOfBound)

	err = m.Store32(0x2000, 1)
	assert.ErrorIs(t, err, rverrors.ErrMemOutOfBound)
}

func TestSparseFetchAlignment(t *testing.T) {
	m := NewSparse()
	m.LoadSegment(0x1000, []byte{0x13, 0x05, 0x10, 0x00})

	_, err := m.ExecuteLoad16(0x1001)
	assert.ErrorIs(t, err, rverrors.ErrMemUnaligned)
	assert.Equal(t, "M2", rverrors.GetErrorCode(err))

	// data loads are not restricted
	v, err := m.Load16(0x1001)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1005), v)
}

func TestSparseCrossPage(t *testing.T) {
	m := NewSparse()
	m.LoadSegment(PageSize-2, []byte{0x13, 0x05, 0x10, 0x00})

	v, err := m.Load32(PageSize - 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00100513), v)

	// straddling into an unmapped page fails without a partial write
	m2 := NewSparse()
	m2.Map(0, PageSize)
	err = m2.Store32(PageSize-2, 0xffffffff)
	assert.ErrorIs(t, err, rverrors.ErrMemOutOfBound)
	v16, err := m2.Load16(PageSize - 2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), v16)
}

func TestMapKeepsContents(t *testing.T) {
	m := NewSparse()
	m.LoadSegment(0x100, []byte{0xaa})
	m.Map(0, PageSize)
	v, err := m.Load8(0x100)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xaa), v)
}
