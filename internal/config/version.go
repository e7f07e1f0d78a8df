package config

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/raffber/mergetool/internal/gitdesc"
)

// ResolveVersion combines a base semantic version with the repository's
// git description, marking the version as a pre-release build
// (`-dev.<sha>`) whenever HEAD isn't sitting exactly on a release tag,
// or the nearest tag doesn't look like one. Supplemented from the
// corpus's git-description-driven pre-release marking.
func ResolveVersion(base *semver.Version, desc gitdesc.Description) (*semver.Version, error) {
	if base == nil {
		return nil, nil
	}
	if desc.OnTag && isReleaseTag(desc.ParentTagName) {
		return base, nil
	}
	sha := desc.SHA
	if len(sha) > 8 {
		sha = sha[:8]
	}
	pre := fmt.Sprintf("dev.%s", sha)
	v, err := base.SetPrerelease(pre)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func isReleaseTag(name string) bool {
	if name == "" {
		return false
	}
	_, err := semver.NewVersion(name)
	return err == nil
}
