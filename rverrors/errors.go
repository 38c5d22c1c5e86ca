package rverrors

import (
	"errors"
	"strings"
)

// Memory (M) Errors
var (
	ErrMemOutOfBound = errors.New("M1|OutOfBound: Access to an unmapped address.")
	ErrMemUnaligned  = errors.New("M2|Unaligned: Access is not aligned to its width.")
)

// Decode (D) Errors
var (
	ErrInvalidInstruction = errors.New("D1|InvalidInstruction: Encoding is not a supported RV64IMC instruction.")
	ErrCompressedDisabled = errors.New("D2|CompressedDisabled: 16-bit encoding found while the C extension is off.")
)

// Execution (X) Errors
var (
	ErrInvalidEcall   = errors.New("X1|InvalidEcall: Environment call number is not supported.")
	ErrCyclesExceeded = errors.New("X2|CyclesExceeded: Machine ran past its cycle limit.")
	ErrUnknownOpcode  = errors.New("X3|UnknownOpcode: Executor received an opcode it cannot evaluate.")
	ErrMisalignedJump = errors.New("X4|MisalignedJump: Jump target is not aligned for the enabled ISA.")
)

var known = []error{
	ErrMemOutOfBound,
	ErrMemUnaligned,
	ErrInvalidInstruction,
	ErrCompressedDisabled,
	ErrInvalidEcall,
	ErrCyclesExceeded,
	ErrUnknownOpcode,
	ErrMisalignedJump,
}

// root returns the sentinel err wraps, or err itself when it wraps none.
func root(err error) error {
	for _, k := range known {
		if errors.Is(err, k) {
			return k
		}
	}
	return err
}

// GetErrorName extracts the error name, e.g. "OutOfBound".
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := root(err).Error()
	_, nameDesc, ok := strings.Cut(errStr, "|")
	if !ok {
		return errStr
	}
	name, _, _ := strings.Cut(nameDesc, ":")
	return strings.TrimSpace(name)
}

// GetErrorCode extracts the error code, e.g. "M1". Foreign errors yield "".
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	code, _, ok := strings.Cut(root(err).Error(), "|")
	if !ok {
		return ""
	}
	return strings.TrimSpace(code)
}

// GetErrorCodeWithName returns "Code_Name", e.g. "D1_InvalidInstruction".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}
