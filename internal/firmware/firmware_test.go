package firmware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raffber/mergetool/internal/addr"
)

func testProfile() addr.Profile {
	return addr.Profile{PageSize: 64, Endianness: addr.Little, WordAddressing: false}
}

func TestNewValidatesLength(t *testing.T) {
	r := addr.Range{Begin: 0, End: 64}
	_, err := New(r, testProfile(), make([]byte, 63))
	require.Error(t, err)
}

func TestNewValidatesPageAlignment(t *testing.T) {
	r := addr.Range{Begin: 0, End: 65}
	_, err := New(r, testProfile(), make([]byte, 65))
	require.Error(t, err)
}

func TestReadWriteU16LittleEndian(t *testing.T) {
	r := addr.Range{Begin: 0, End: 64}
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0xFF
	}
	fw, err := New(r, testProfile(), data)
	require.NoError(t, err)

	fw.WriteU16(0, 0x1234)
	require.EqualValues(t, 0x1234, fw.ReadU16(0))
	require.Equal(t, byte(0x34), fw.Bytes[0])
	require.Equal(t, byte(0x12), fw.Bytes[1])
}

func TestReadWriteU16BigEndian(t *testing.T) {
	r := addr.Range{Begin: 0, End: 64}
	p := testProfile()
	p.Endianness = addr.Big
	data := make([]byte, 64)
	fw, err := New(r, p, data)
	require.NoError(t, err)

	fw.WriteU16(0, 0x1234)
	require.Equal(t, byte(0x12), fw.Bytes[0])
	require.Equal(t, byte(0x34), fw.Bytes[1])
	require.EqualValues(t, 0x1234, fw.ReadU16(0))
}

func TestWriteU32UsesOffsetPlusTwoForHighHalf(t *testing.T) {
	r := addr.Range{Begin: 0, End: 64}
	data := make([]byte, 64)
	fw, err := New(r, testProfile(), data)
	require.NoError(t, err)

	fw.WriteU32(4, 0xDEADBEEF)
	require.EqualValues(t, 0xDEADBEEF, fw.ReadU32(4))
	require.Equal(t, fw.ReadU16(4), uint16(0xBEEF))
	require.Equal(t, fw.ReadU16(6), uint16(0xDEAD))
}

func TestImageLengthRoundsUpToPage(t *testing.T) {
	r := addr.Range{Begin: 0, End: 128}
	data := make([]byte, 128)
	for i := range data {
		data[i] = 0xFF
	}
	for i := 0; i < 10; i++ {
		data[i] = byte(i)
	}
	fw, err := New(r, testProfile(), data)
	require.NoError(t, err)
	require.EqualValues(t, 64, fw.ImageLength())
}

func TestConcatenateFillsGapAndPreservesPrefix(t *testing.T) {
	p := testProfile()
	first, err := New(addr.Range{Begin: 0, End: 64}, p, make([]byte, 64))
	require.NoError(t, err)
	for i := range first.Bytes {
		first.Bytes[i] = byte(i + 1)
	}

	second, err := New(addr.Range{Begin: 64, End: 128}, p, make([]byte, 64))
	require.NoError(t, err)
	for i := range second.Bytes {
		second.Bytes[i] = 0xAA
	}

	merged, err := Concatenate(first, second)
	require.NoError(t, err)
	require.EqualValues(t, 128, merged.Range.Len())
	require.Equal(t, first.Bytes, merged.Bytes[:64])
	require.Equal(t, second.Bytes, merged.Bytes[64:])
}

func TestConcatenateRejectsOverlap(t *testing.T) {
	p := testProfile()
	first, _ := New(addr.Range{Begin: 0, End: 64}, p, make([]byte, 64))
	second, _ := New(addr.Range{Begin: 32, End: 96}, p, make([]byte, 64))

	_, err := Concatenate(first, second)
	require.Error(t, err)
}
