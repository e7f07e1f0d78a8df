package header

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raffber/mergetool/internal/addr"
	"github.com/raffber/mergetool/internal/firmware"
)

func newTestFirmware(t *testing.T) *firmware.Firmware {
	t.Helper()
	p := addr.Profile{PageSize: 64, Endianness: addr.Little, WordAddressing: false}
	fw, err := firmware.New(addr.Range{Begin: 0, End: 64}, p, make([]byte, 64))
	require.NoError(t, err)
	return fw
}

func TestHeaderTooShort(t *testing.T) {
	p := addr.Profile{PageSize: 16, Endianness: addr.Little, WordAddressing: false}
	fw, err := firmware.New(addr.Range{Begin: 0, End: 16}, p, make([]byte, 16))
	require.NoError(t, err)

	_, err = New(fw, 0)
	require.Error(t, err)
}

func TestHeaderFieldRoundTrip(t *testing.T) {
	fw := newTestFirmware(t)
	v, err := New(fw, 0)
	require.NoError(t, err)

	v.SetProductID(0x0605)
	v.SetFirmwareID(7)
	v.SetMajorVersion(3)
	v.SetMinorVersion(5)
	v.SetPatchVersion(4)
	v.SetImageLength(128)
	v.SetBuildTimestamp(0x0000123456789ABC & 0xFFFFFFFFFFFF)

	require.EqualValues(t, 0x0605, v.ProductID())
	require.EqualValues(t, 7, v.FirmwareID())
	require.EqualValues(t, 3, v.MajorVersion())
	require.EqualValues(t, 5, v.MinorVersion())
	require.EqualValues(t, 4, v.PatchVersion())
	require.EqualValues(t, 128, v.ImageLength())
	require.EqualValues(t, 0x123456789ABC&0xFFFFFFFFFFFF, v.BuildTimestamp())
}

func TestHeaderOffsetNonZero(t *testing.T) {
	fw := newTestFirmware(t)
	v, err := New(fw, 16)
	require.NoError(t, err)
	v.SetProductID(42)
	require.EqualValues(t, 42, v.ProductID())
	require.EqualValues(t, 0, fw.ReadU16(0)) // untouched outside the view
}
