package machine

import (
	"math"
	"math/bits"
)

func bool2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func sext32(v uint64) uint64 {
	return uint64(int64(int32(v)))
}

func mulhu(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

func mulh(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	if a>>63 == 1 {
		hi -= b
	}
	if b>>63 == 1 {
		hi -= a
	}
	return hi
}

// mulhsu treats a as signed and b as unsigned.
func mulhsu(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	if a>>63 == 1 {
		hi -= b
	}
	return hi
}

func div(a, b uint64) uint64 {
	switch {
	case b == 0:
		return math.MaxUint64
	case int64(a) == math.MinInt64 && int64(b) == -1:
		return a
	}
	return uint64(int64(a) / int64(b))
}

func divu(a, b uint64) uint64 {
	if b == 0 {
		return math.MaxUint64
	}
	return a / b
}

func rem(a, b uint64) uint64 {
	switch {
	case b == 0:
		return a
	case int64(a) == math.MinInt64 && int64(b) == -1:
		return 0
	}
	return uint64(int64(a) % int64(b))
}

func remu(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}
