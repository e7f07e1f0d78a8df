// Package firmware implements the in-memory firmware image: an address
// range, a device profile and the byte buffer between them, plus the
// scalar I/O, concatenation and image-length arithmetic the bootload
// pipeline builds on.
package firmware

import (
	"fmt"
	"os"

	"github.com/raffber/mergetool/internal/addr"
	"github.com/raffber/mergetool/internal/errs"
	"github.com/raffber/mergetool/internal/hexfile/intelhex"
	"github.com/raffber/mergetool/internal/hexfile/srecord"
)

// FillByte is the erase pattern used to fill unused positions.
const FillByte = 0xFF

// Format selects which text record format a Firmware is loaded from or
// saved to.
type Format int

const (
	IntelHex Format = iota
	SRecord
)

// Extension returns the conventional file extension for the format.
func (f Format) Extension() string {
	switch f {
	case SRecord:
		return "s37"
	default:
		return "hex"
	}
}

// Firmware owns an address range, a device profile and a byte buffer
// whose length always equals range.Len().
type Firmware struct {
	Range   addr.Range
	Profile addr.Profile
	Bytes   []byte
}

// New validates the firmware invariants: the buffer length matches the
// range length, and both ends of the range are page-aligned.
func New(r addr.Range, p addr.Profile, data []byte) (*Firmware, error) {
	if uint64(len(data)) != r.Len() {
		return nil, errs.ErrInvalidDataLength
	}
	if !p.AlignedToPage(r) {
		return nil, errs.ErrAddressRangeNotAlignedToPage
	}
	return &Firmware{Range: r, Profile: p, Bytes: data}, nil
}

// Load reads a text hex/srecord file and constructs a Firmware covering
// range r (given in bytes; callers that hold a word-addressed range
// must convert it first via addr.Range.ToBytes).
func Load(path string, format Format, p addr.Profile, r addr.Range) (*Firmware, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapIo(path, err)
	}
	var data []byte
	switch format {
	case IntelHex:
		data, err = intelhex.Parse(string(raw), p.WordAddressing, r)
	case SRecord:
		data, err = srecord.Parse(string(raw), p.WordAddressing, r)
	default:
		return nil, fmt.Errorf("unknown hex file format %v", format)
	}
	if err != nil {
		return nil, err
	}
	return New(r, p, data)
}

// Save serializes the firmware back to a text hex/srecord file.
func (f *Firmware) Save(path string, format Format) error {
	var text string
	switch format {
	case IntelHex:
		text = intelhex.Serialize(f.Profile.WordAddressing, f.Range, f.Bytes)
	case SRecord:
		text = srecord.Serialize(f.Profile.WordAddressing, f.Range, f.Bytes)
	default:
		return fmt.Errorf("unknown hex file format %v", format)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return errs.WrapIo(path, err)
	}
	return nil
}

// ReadU16 assembles a 16-bit scalar at offset per the device's
// endianness.
func (f *Firmware) ReadU16(offset int) uint16 {
	a, b := f.Bytes[offset], f.Bytes[offset+1]
	if f.Profile.Endianness == addr.Big {
		return uint16(a)<<8 | uint16(b)
	}
	return uint16(b)<<8 | uint16(a)
}

// ReadU32 assembles a 32-bit scalar at offset per the device's
// endianness, as two consecutive 16-bit halves.
func (f *Firmware) ReadU32(offset int) uint32 {
	hi, lo := f.ReadU16(offset), f.ReadU16(offset+2)
	if f.Profile.Endianness == addr.Big {
		return uint32(hi)<<16 | uint32(lo)
	}
	return uint32(lo)<<16 | uint32(hi)
}

// WriteU16 writes a 16-bit scalar at offset per the device's endianness.
func (f *Firmware) WriteU16(offset int, v uint16) {
	lsb, msb := byte(v&0xFF), byte((v>>8)&0xFF)
	if f.Profile.Endianness == addr.Big {
		f.Bytes[offset], f.Bytes[offset+1] = msb, lsb
	} else {
		f.Bytes[offset], f.Bytes[offset+1] = lsb, msb
	}
}

// WriteU32 writes a 32-bit scalar at offset per the device's
// endianness, as two consecutive 16-bit halves at offset and offset+2.
func (f *Firmware) WriteU32(offset int, v uint32) {
	lo, hi := uint16(v&0xFFFF), uint16((v>>16)&0xFFFF)
	if f.Profile.Endianness == addr.Big {
		f.WriteU16(offset, hi)
		f.WriteU16(offset+2, lo)
	} else {
		f.WriteU16(offset, lo)
		f.WriteU16(offset+2, hi)
	}
}

// ImageLength walks back from the end of the buffer over trailing
// FillByte bytes and rounds the first non-fill position up to the next
// page-size multiple. The minimum result is 0.
func (f *Firmware) ImageLength() uint64 {
	k := len(f.Bytes)
	for k > 0 && f.Bytes[k-1] == FillByte {
		k--
	}
	return f.Profile.RoundUpToPage(uint64(k))
}

// Concatenate merges second after first, filling the gap between them
// with FillByte. second must begin at or after first's end; the result
// inherits first's device profile and spans
// [first.Range.Begin, second.Range.End).
func Concatenate(first, second *Firmware) (*Firmware, error) {
	if second.Range.Begin < first.Range.Begin+uint64(len(first.Bytes)) {
		return nil, errs.ErrInvalidAddress
	}
	gap := second.Range.Begin - (first.Range.Begin + uint64(len(first.Bytes)))

	data := make([]byte, 0, uint64(len(first.Bytes))+gap+uint64(len(second.Bytes)))
	data = append(data, first.Bytes...)
	for i := uint64(0); i < gap; i++ {
		data = append(data, FillByte)
	}
	data = append(data, second.Bytes...)

	r := addr.Range{Begin: first.Range.Begin, End: second.Range.End}
	return &Firmware{Range: r, Profile: first.Profile, Bytes: data}, nil
}
