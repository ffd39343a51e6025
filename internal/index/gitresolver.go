package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitResolver resolves change sets from a git repository using go-git.
// The diff is taken against the first parent, the pre-merge main-line
// state, so a merge commit's change set is exactly what the merge brought
// in.
type GitResolver struct{}

// NewGitResolver creates a git-backed ChangeSetResolver.
func NewGitResolver() *GitResolver {
	return &GitResolver{}
}

func (r *GitResolver) TouchedPaths(ctx context.Context, repoPath, commitSHA string) ([]string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", repoPath, err)
	}

	var hash plumbing.Hash
	if commitSHA == "" {
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("resolve head: %w", err)
		}
		hash = head.Hash()
	} else {
		resolved, err := repo.ResolveRevision(plumbing.Revision(commitSHA))
		if err != nil {
			return nil, fmt.Errorf("resolve revision %q: %w", commitSHA, err)
		}
		hash = *resolved
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", hash, err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree for %s: %w", hash, err)
	}

	// Fewer than two parents means this is not actually a merge; the
	// single-parent diff is the graceful degradation. A root commit has no
	// parent at all, so every path in its tree is new.
	if commit.NumParents() == 0 {
		return treePaths(tree)
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("load first parent of %s: %w", hash, err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("load parent tree: %w", err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	// Union both sides of every entry: for a rename the old name drives
	// deletion and the new name drives insertion.
	set := make(map[string]bool, len(changes))
	for _, change := range changes {
		if change.From.Name != "" {
			set[change.From.Name] = true
		}
		if change.To.Name != "" {
			set[change.To.Name] = true
		}
	}

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func treePaths(tree *object.Tree) ([]string, error) {
	var paths []string
	err := tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

var _ ChangeSetResolver = (*GitResolver)(nil)
