// Package gitdesc retrieves a git-describe-style view of the repo
// housing the configuration, used to mark a version as a pre-release
// when the build isn't sitting exactly on a tag. Built on
// github.com/go-git/go-git/v5, which ships in this corpus as the
// pure-Go alternative to shelling out to git or binding libgit2.
package gitdesc

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/raffber/mergetool/internal/errs"
)

// Description is the subset of git-describe state the version
// resolver needs: a tag name (if the repository has any tags) and
// whether HEAD sits exactly on it.
type Description struct {
	ParentTagName string
	OnTag         bool
	SHA           string
}

// Describe opens the repository at repoPath and resolves HEAD against
// its tags. If a tag points at HEAD, ParentTagName is that tag and
// OnTag is true; otherwise ParentTagName is the first tag the tag
// iterator yields, with no check of reachability or distance from
// HEAD. A repository with no tags returns a Description with an empty
// ParentTagName and OnTag false, not an error.
func Describe(repoPath string) (Description, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Description{}, errs.WrapGit(err)
	}
	head, err := repo.Head()
	if err != nil {
		return Description{}, errs.WrapGit(err)
	}
	sha := head.Hash().String()

	tags, err := repo.Tags()
	if err != nil {
		return Description{}, errs.WrapGit(err)
	}

	var nearest string
	var onTag bool
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		resolved, rerr := repo.ResolveRevision(plumbing.Revision(ref.Name().String()))
		if rerr != nil {
			return nil
		}
		name := ref.Name().Short()
		if *resolved == head.Hash() {
			nearest = name
			onTag = true
			return storeErrStop
		}
		if nearest == "" {
			nearest = name
		}
		return nil
	})
	if err != nil && err != storeErrStop {
		return Description{}, errs.WrapGit(err)
	}

	return Description{ParentTagName: nearest, OnTag: onTag, SHA: sha}, nil
}

var storeErrStop = errStop{}

type errStop struct{}

func (errStop) Error() string { return "stop" }
