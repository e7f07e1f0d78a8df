// Changelog-derived version fallback: a supplemented feature absent
// from the distilled spec but present in the corpus this module was
// distilled from (a "## [X.Y.Z] - date" heading scan), kept here in
// the teacher's preference for regexp-based text extraction.
package config

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/raffber/mergetool/internal/errs"
)

var changelogHeading = regexp.MustCompile(`^## \[(?P<version>.*?)\]`)

// VersionFromChangelog scans changelog text line by line for the
// first "## " heading and parses its bracketed text ("## [X.Y.Z] ...")
// as a semantic version. It fails if that first heading has no
// bracketed version; later headings are not searched.
func VersionFromChangelog(changelog string) (*semver.Version, error) {
	sc := bufio.NewScanner(strings.NewReader(changelog))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		m := changelogHeading.FindStringSubmatch(line)
		if m == nil {
			return nil, errs.ErrCannotParseChangelog
		}
		v, err := semver.NewVersion(m[1])
		if err != nil {
			return nil, errs.ErrCannotParseChangelog
		}
		return v, nil
	}
	return nil, errs.ErrCannotParseChangelog
}

// VersionFromChangelogFile reads path and delegates to
// VersionFromChangelog.
func VersionFromChangelogFile(path string) (*semver.Version, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapIo(path, err)
	}
	return VersionFromChangelog(string(raw))
}
