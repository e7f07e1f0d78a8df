// Package addr implements the byte-range and device-profile arithmetic
// shared by the firmware image model and the hex codecs.
package addr

import "fmt"

// Endianness selects the byte order used for scalar reads and writes
// inside a firmware image.
type Endianness int

const (
	Little Endianness = iota
	Big
)

func (e Endianness) String() string {
	if e == Big {
		return "big"
	}
	return "little"
}

// Range is an address range in bytes, begin inclusive and end exclusive:
// len = end - begin.
type Range struct {
	Begin uint64
	End   uint64
}

// Len returns the number of bytes spanned by the range.
func (r Range) Len() uint64 {
	return r.End - r.Begin
}

// ToBytes doubles both endpoints when word addressing is in effect,
// converting an externally-expressed word range into the byte range the
// core always operates on.
func (r Range) ToBytes(wordAddressing bool) Range {
	if !wordAddressing {
		return r
	}
	return Range{Begin: r.Begin * 2, End: r.End * 2}
}

func (r Range) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Begin, r.End)
}

// Profile is a device's page size, endianness and addressing convention.
type Profile struct {
	PageSize       uint64
	Endianness     Endianness
	WordAddressing bool
}

// AlignedToPage reports whether both ends of r are multiples of the
// device's page size.
func (p Profile) AlignedToPage(r Range) bool {
	if p.PageSize == 0 {
		return false
	}
	return r.Begin%p.PageSize == 0 && r.End%p.PageSize == 0
}

// RoundUpToPage rounds n up to the next multiple of the device's page
// size; a value already on a page boundary is returned unchanged.
func (p Profile) RoundUpToPage(n uint64) uint64 {
	if p.PageSize == 0 || n%p.PageSize == 0 {
		return n
	}
	return n + (p.PageSize - n%p.PageSize)
}
