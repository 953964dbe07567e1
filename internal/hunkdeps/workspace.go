package hunkdeps

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5/plumbing"

	"lanes.dev/lanes/internal/diffparse"
	"lanes.dev/lanes/internal/errors"
)

// InputFile is one file's diffs within a commit.
type InputFile struct {
	Path  string
	Diffs []diffparse.InputDiff
}

// InputCommit is one commit's per-file diffs against its parent.
type InputCommit struct {
	CommitID plumbing.Hash
	Files    []InputFile
}

// InputStack is a stack as a sequence of commits, oldest first.
type InputStack struct {
	StackID StackID
	Commits []InputCommit
}

// WorkspaceRanges projects every stack's ranges into the workspace commit's
// line coordinates.
//
// First it combines changes per stack sequentially by commit, allowing for
// dependent changes where one commit overwrites a previous commit's lines.
// It then interleaves the per-stack ranges of each path into a single list
// whose line numbers match the workspace tree. Stacks are both assumed, and
// required, to be independent per path; violations surface as calculation
// errors rather than aborting the build.
type WorkspaceRanges struct {
	paths map[string][]HunkRange

	// Errors collects per-path failures; paths that combined cleanly remain
	// queryable.
	Errors []*errors.CalculationError
}

// NewWorkspaceRanges builds the workspace projection from per-stack inputs.
func NewWorkspaceRanges(inputStacks []InputStack) *WorkspaceRanges {
	stacks := make([]*StackRanges, 0, len(inputStacks))
	for _, inputStack := range inputStacks {
		stack := NewStackRanges()
		for _, commit := range inputStack.Commits {
			for _, file := range commit.Files {
				stack.Add(inputStack.StackID, commit.CommitID, file.Path, file.Diffs)
			}
		}
		stacks = append(stacks, stack)
	}

	paths := make(map[string]struct{})
	for _, stack := range stacks {
		for path := range stack.UniquePaths() {
			paths[path] = struct{}{}
		}
	}

	ws := &WorkspaceRanges{paths: make(map[string][]HunkRange, len(paths))}
	for path := range paths {
		combined, err := combinePathRanges(path, stacks)
		if err != nil {
			log.Warn("failed to combine ranges", "path", path, "err", err)
			ws.Errors = append(ws.Errors, errors.NewCalculationError(path, err.Error()))
		}
		ws.paths[path] = combined
	}
	return ws
}

// Intersection finds the committed ranges that intersect with a given path
// and line range, in workspace coordinates.
func (w *WorkspaceRanges) Intersection(path string, start, lines int) []HunkRange {
	var result []HunkRange
	for _, hunk := range w.paths[path] {
		if hunk.Intersects(start, lines) {
			result = append(result, hunk)
		}
	}
	return result
}

// combinePathRanges interleaves the per-stack range lists of one path into
// workspace coordinates. The workspace commit applies every stack's edits, so
// a later stack's local coordinates must be shifted by the cumulative net
// lines of all earlier-emitted ranges.
func combinePathRanges(path string, stacks []*StackRanges) ([]HunkRange, error) {
	// Only stacks that touch the path take part.
	var filtered []*PathRanges
	for _, stack := range stacks {
		if ranges, ok := stack.Paths[path]; ok {
			filtered = append(filtered, ranges)
		}
	}

	// Cumulative lines added or removed by everything emitted so far.
	lineShift := 0
	// Next un-emitted range per stack.
	cursors := make([]int, len(filtered))

	var result []HunkRange
	var err error
	for {
		// Pick the stack whose next range has the smallest local start.
		next := -1
		for i, ranges := range filtered {
			if cursors[i] >= len(ranges.Hunks) {
				continue
			}
			if next == -1 || ranges.Hunks[cursors[i]].Start < filtered[next].Hunks[cursors[next]].Start {
				next = i
			}
		}
		if next == -1 {
			break
		}

		hunk := filtered[next].Hunks[cursors[next]]
		cursors[next]++

		emitted := hunk
		emitted.Start += lineShift
		if len(result) > 0 && err == nil {
			if prev := result[len(result)-1]; emitted.Start <= prev.End() {
				err = fmt.Errorf("stacks overlap at %s:%d", path, emitted.Start)
			}
		}
		result = append(result, emitted)
		lineShift += hunk.LineShift
	}
	return result, err
}
