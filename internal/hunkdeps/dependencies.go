package hunkdeps

import (
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"lanes.dev/lanes/internal/errors"
	"lanes.dev/lanes/internal/worktree"
)

// HunkLock names the commit an uncommitted hunk depends on, along with the
// stack that owns it. A hunk is locked when it touches lines that a commit in
// the workspace already modified; it can be locked to more than one commit if
// it overlaps several committed hunks.
type HunkLock struct {
	StackID  StackID
	CommitID plumbing.Hash
}

// DiffDependency associates one uncommitted hunk of a path with the commits
// it depends on.
type DiffDependency struct {
	Path  string
	Hunk  worktree.DiffHunk
	Locks []HunkLock
}

// HunkDependencies maps the worktree's uncommitted hunks to the committed
// hunks they overlap. Errors collects per-path failures; all other paths
// remain usable.
type HunkDependencies struct {
	Diffs  []DiffDependency
	Errors []*errors.CalculationError
}

// Dependencies computes the hunk dependencies of a set of worktree changes
// against prepared workspace ranges. Every change is diffed with zero context
// lines so the old-side coordinates can be intersected against the committed
// ranges directly.
func Dependencies(repo *gogit.Repository, ranges *WorkspaceRanges, changes []worktree.TreeChange) (*HunkDependencies, error) {
	deps := &HunkDependencies{Errors: ranges.Errors}
	for _, change := range changes {
		hunks, err := change.UnifiedDiff(repo, 0)
		if err != nil {
			deps.Errors = append(deps.Errors, errors.NewCalculationError(change.Path, err.Error()))
			continue
		}
		for _, hunk := range hunks {
			intersections := ranges.Intersection(change.Path, hunk.OldStart, hunk.OldLines)
			if len(intersections) == 0 {
				continue
			}
			locks := make([]HunkLock, 0, len(intersections))
			for _, dependency := range intersections {
				locks = append(locks, HunkLock{
					StackID:  dependency.StackID,
					CommitID: dependency.CommitID,
				})
			}
			deps.Diffs = append(deps.Diffs, DiffDependency{
				Path:  change.Path,
				Hunk:  hunk,
				Locks: locks,
			})
		}
	}
	return deps, nil
}
