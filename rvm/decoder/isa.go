package decoder

// ISA is a set of instruction-set capability flags.
type ISA uint8

const (
	// ISAIMC adds the C extension to the always present RV64IM base.
	ISAIMC ISA = 1 << iota
	// ISAMOP advertises macro-op fusion.
	ISAMOP
)

func (isa ISA) Has(flag ISA) bool {
	return isa&flag == flag
}

// NewRawDecoderForISA returns a primitive decoder for isa.
func NewRawDecoderForISA(isa ISA) *RawDecoder {
	return NewRawDecoder(isa.Has(ISAIMC))
}
