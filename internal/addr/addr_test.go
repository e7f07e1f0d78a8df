package addr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeLen(t *testing.T) {
	r := Range{Begin: 0x100, End: 0x200}
	require.EqualValues(t, 0x100, r.Len())
}

func TestToBytesDoublesOnWordAddressing(t *testing.T) {
	r := Range{Begin: 0x10, End: 0x20}
	require.Equal(t, r, r.ToBytes(false))
	require.Equal(t, Range{Begin: 0x20, End: 0x40}, r.ToBytes(true))
}

func TestAlignedToPageExclusiveEnd(t *testing.T) {
	p := Profile{PageSize: 64}
	require.True(t, p.AlignedToPage(Range{Begin: 0, End: 64}))
	require.False(t, p.AlignedToPage(Range{Begin: 0, End: 65}))
}

func TestRoundUpToPage(t *testing.T) {
	p := Profile{PageSize: 64}
	require.EqualValues(t, 64, p.RoundUpToPage(1))
	require.EqualValues(t, 64, p.RoundUpToPage(64))
	require.EqualValues(t, 128, p.RoundUpToPage(65))
}
