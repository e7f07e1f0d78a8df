// Package header exposes a fixed-offset, typed view over a firmware
// buffer. It never copies the underlying bytes; every accessor reads
// or writes straight through to the Firmware it was constructed with.
package header

import (
	"github.com/raffber/mergetool/internal/errs"
	"github.com/raffber/mergetool/internal/firmware"
)

const (
	productIDOffset      = 0
	firmwareIDOffset     = 2
	majorVersionOffset   = 4
	minorVersionOffset   = 6
	patchVersionOffset   = 8
	imageLengthOffset    = 12
	buildTimestampOffset = 18

	// Length is the total size in bytes of the fixed header layout.
	Length = 32
)

// View is a typed window into a Firmware at a fixed byte offset.
// It borrows the Firmware for the duration of its use; callers must
// not retain a View past the point where they hand the Firmware to
// another mutator.
type View struct {
	fw     *firmware.Firmware
	offset int
}

// New opens a header view at offset. It fails with
// ImageTooShortForHeader if the firmware cannot hold the full header
// starting at offset.
func New(fw *firmware.Firmware, offset int) (*View, error) {
	if offset < 0 || offset+Length > len(fw.Bytes) {
		return nil, errs.ErrImageTooShortForHeader
	}
	return &View{fw: fw, offset: offset}, nil
}

func (v *View) ProductID() uint16      { return v.fw.ReadU16(v.offset + productIDOffset) }
func (v *View) SetProductID(x uint16)  { v.fw.WriteU16(v.offset+productIDOffset, x) }
func (v *View) FirmwareID() uint8      { return byte(v.fw.ReadU16(v.offset+firmwareIDOffset) & 0xFF) }
func (v *View) MajorVersion() uint16   { return v.fw.ReadU16(v.offset + majorVersionOffset) }
func (v *View) MinorVersion() uint16   { return v.fw.ReadU16(v.offset + minorVersionOffset) }
func (v *View) PatchVersion() uint32   { return v.fw.ReadU32(v.offset + patchVersionOffset) }
func (v *View) ImageLength() uint32    { return v.fw.ReadU32(v.offset + imageLengthOffset) }

func (v *View) SetFirmwareID(x uint8) {
	v.fw.WriteU16(v.offset+firmwareIDOffset, uint16(x))
}

func (v *View) SetMajorVersion(x uint16) { v.fw.WriteU16(v.offset+majorVersionOffset, x) }
func (v *View) SetMinorVersion(x uint16) { v.fw.WriteU16(v.offset+minorVersionOffset, x) }
func (v *View) SetPatchVersion(x uint32) { v.fw.WriteU32(v.offset+patchVersionOffset, x) }
func (v *View) SetImageLength(x uint32)  { v.fw.WriteU32(v.offset+imageLengthOffset, x) }

// BuildTimestamp reassembles the 48-bit timestamp from its u32 low and
// u16 high halves.
func (v *View) BuildTimestamp() uint64 {
	lo := v.fw.ReadU32(v.offset + buildTimestampOffset)
	hi := v.fw.ReadU16(v.offset + buildTimestampOffset + 4)
	return uint64(hi)<<32 | uint64(lo)
}

// SetBuildTimestamp splits a 48-bit value into a u32 low half and a
// u16 high half, per §4.4.
func (v *View) SetBuildTimestamp(ts uint64) {
	v.fw.WriteU32(v.offset+buildTimestampOffset, uint32(ts&0xFFFFFFFF))
	v.fw.WriteU16(v.offset+buildTimestampOffset+4, uint16((ts>>32)&0xFFFF))
}
