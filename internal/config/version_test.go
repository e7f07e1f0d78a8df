package config

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"

	"github.com/raffber/mergetool/internal/gitdesc"
)

func TestResolveVersionOnReleaseTag(t *testing.T) {
	base := semver.MustParse("1.2.3")
	resolved, err := ResolveVersion(base, gitdesc.Description{ParentTagName: "1.2.3", OnTag: true, SHA: "deadbeef"})
	require.NoError(t, err)
	require.Equal(t, "1.2.3", resolved.String())
}

func TestResolveVersionMarksPrerelease(t *testing.T) {
	base := semver.MustParse("1.2.3")
	resolved, err := ResolveVersion(base, gitdesc.Description{ParentTagName: "1.2.3", OnTag: false, SHA: "deadbeef01"})
	require.NoError(t, err)
	require.Contains(t, resolved.String(), "dev.deadbeef")
}

func TestResolveVersionNilBase(t *testing.T) {
	resolved, err := ResolveVersion(nil, gitdesc.Description{})
	require.NoError(t, err)
	require.Nil(t, resolved)
}
