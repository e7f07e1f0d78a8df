package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionFromChangelog(t *testing.T) {
	v, err := VersionFromChangelog(" ## [0.1.0] - 2020-04-01\n\nsome notes")
	require.NoError(t, err)
	require.EqualValues(t, 0, v.Major())
	require.EqualValues(t, 1, v.Minor())
	require.EqualValues(t, 0, v.Patch())
}

func TestVersionFromChangelogMissingHeading(t *testing.T) {
	_, err := VersionFromChangelog("no heading here")
	require.Error(t, err)
}
