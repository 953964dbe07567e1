package cli

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lanes.dev/lanes/internal/diffparse"
	"lanes.dev/lanes/internal/hunkdeps"
	"lanes.dev/lanes/internal/meta"
	"lanes.dev/lanes/internal/worktree"
)

// maxStackDepth bounds the commit walk of one branch when no target pins it.
const maxStackDepth = 200

func newDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Show which committed hunks the uncommitted changes depend on",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository()
			if err != nil {
				return err
			}
			store := meta.NewRefStore(repo)

			stacks, err := inputStacks(repo, store)
			if err != nil {
				return fmt.Errorf("failed to assemble stacks: %w", err)
			}
			ranges := hunkdeps.NewWorkspaceRanges(stacks)

			changes, err := worktree.Changes(repo)
			if err != nil {
				return fmt.Errorf("failed to enumerate changes: %w", err)
			}

			deps, err := hunkdeps.Dependencies(repo, ranges, changes.Changes)
			if err != nil {
				return err
			}

			for _, diff := range deps.Diffs {
				cmd.Printf("%s @@ -%d,%d:\n", diff.Path, diff.Hunk.OldStart, diff.Hunk.OldLines)
				for _, lock := range diff.Locks {
					cmd.Printf("  depends on %s (stack %s)\n", lock.CommitID.String()[:7], lock.StackID)
				}
			}
			for _, calcErr := range deps.Errors {
				cmd.PrintErrf("warning: %s\n", calcErr)
			}
			return nil
		},
	}
}

// inputStacks turns the workspace metadata into per-stack commit diffs, each
// commit carrying its file hunks against its parent.
func inputStacks(repo *gogit.Repository, store meta.Store) ([]hunkdeps.InputStack, error) {
	entries, err := store.Workspaces()
	if err != nil {
		return nil, err
	}

	var stacks []hunkdeps.InputStack
	for _, entry := range entries {
		if entry.Workspace == nil {
			continue
		}
		base := resolveTarget(repo, entry.Workspace)
		for _, stack := range entry.Workspace.Stacks {
			for _, branch := range stack.Branches {
				ref, err := repo.Reference(plumbing.ReferenceName(branch.RefName), true)
				if err != nil {
					continue
				}
				commits, err := firstParentChain(repo, ref.Hash(), base)
				if err != nil {
					return nil, err
				}
				input := hunkdeps.InputStack{
					// Stack identity is derived from the ref so repeated runs agree.
					StackID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(branch.RefName)),
				}
				for _, commit := range commits {
					files, err := commitFiles(repo, commit)
					if err != nil {
						return nil, err
					}
					input.Commits = append(input.Commits, hunkdeps.InputCommit{
						CommitID: commit.Hash,
						Files:    files,
					})
				}
				stacks = append(stacks, input)
			}
		}
	}
	return stacks, nil
}

// resolveTarget finds the integration base commit of a workspace, if its
// target ref exists.
func resolveTarget(repo *gogit.Repository, ws *meta.Workspace) plumbing.Hash {
	if ws.TargetRef == nil {
		return plumbing.ZeroHash
	}
	ref, err := repo.Reference(plumbing.ReferenceName(*ws.TargetRef), true)
	if err != nil {
		return plumbing.ZeroHash
	}
	return ref.Hash()
}

// firstParentChain walks a branch tip down its first parents until the base
// (exclusive), oldest commit first.
func firstParentChain(repo *gogit.Repository, tip, base plumbing.Hash) ([]*object.Commit, error) {
	var chain []*object.Commit
	current := tip
	for len(chain) < maxStackDepth {
		if !base.IsZero() && current == base {
			break
		}
		commit, err := repo.CommitObject(current)
		if err != nil {
			return nil, fmt.Errorf("failed to read commit %s: %w", current, err)
		}
		chain = append(chain, commit)
		if commit.NumParents() == 0 {
			break
		}
		current = commit.ParentHashes[0]
	}
	// Reverse so the oldest commit is folded into the range tables first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// commitFiles diffs one commit against its first parent and parses the
// zero-context hunks of every touched blob.
func commitFiles(repo *gogit.Repository, commit *object.Commit) ([]hunkdeps.InputFile, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, err
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff commit %s: %w", commit.Hash, err)
	}

	var files []hunkdeps.InputFile
	for _, change := range changes {
		path := change.To.Name
		if path == "" {
			path = change.From.Name
		}
		hunks, err := worktree.BlobDiffHunks(repo, change.From.TreeEntry.Hash, change.To.TreeEntry.Hash, 0)
		if err != nil {
			return nil, err
		}
		var diffs []diffparse.InputDiff
		for _, hunk := range hunks {
			diffs = append(diffs, diffparse.InputDiff{
				OldStart: hunk.OldStart,
				OldLines: hunk.OldLines,
				NewStart: hunk.NewStart,
				NewLines: hunk.NewLines,
			})
		}
		if len(diffs) > 0 {
			files = append(files, hunkdeps.InputFile{Path: path, Diffs: diffs})
		}
	}
	return files, nil
}
