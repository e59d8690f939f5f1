// Package gitrepo reads branch information from a local git repository.
package gitrepo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Branch is a local branch of the repository.
type Branch struct {
	Name      string
	IsCurrent bool
}

// ListBranches returns the local branches of the repository containing path.
// The checked-out branch comes first, the rest are sorted by name.
func ListBranches(path string) ([]Branch, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	current := ""
	head, err := repo.Head()
	switch {
	case err == nil:
		if head.Name().IsBranch() {
			current = head.Name().Short()
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Unborn HEAD (no commits yet)
	default:
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}

	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer iter.Close()

	var branches []Branch
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		branches = append(branches, Branch{Name: name, IsCurrent: name == current})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	sort.SliceStable(branches, func(i, j int) bool {
		if branches[i].IsCurrent != branches[j].IsCurrent {
			return branches[i].IsCurrent
		}
		return branches[i].Name < branches[j].Name
	})
	return branches, nil
}
