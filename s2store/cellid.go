package s2store

import "math/bits"

// MaxS2Level is the deepest S2 cell subdivision level.
const MaxS2Level = 30

// CellID is a 64-bit S2 cell identifier: 3 face bits, 2*level position bits,
// a single 1 bit, then zeros.
type CellID uint64

// Level returns the subdivision level encoded by the id's trailing-one bit.
//
// ok=false indicates the value is not a well formed cell id.
func (c CellID) Level() (uint8, bool) {
	if c == 0 {
		return 0, false
	}
	tz := bits.TrailingZeros64(uint64(c))
	if tz%2 != 0 || tz > 2*MaxS2Level {
		return 0, false
	}
	return uint8(MaxS2Level - tz/2), true
}

// Range is a half-open interval [Start, End) of cell ids at one level.
type Range struct {
	Start CellID
	End   CellID
}
