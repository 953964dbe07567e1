// Package hunkdeps computes which committed hunks the uncommitted hunks of a
// workspace depend on. It maintains a per-path, per-branch table of line
// ranges owned by commits, projects all branches into the workspace commit's
// line coordinates, and answers intersection queries against that projection.
package hunkdeps

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
)

// StackID identifies one stack (an ordered list of branches forming one
// logical unit of in-flight work).
type StackID = uuid.UUID

// HunkRange is a contiguous line interval in a file owned (most recently
// modified) by a particular commit on a particular stack.
type HunkRange struct {
	StackID  StackID
	CommitID plumbing.Hash
	Start    int
	Lines    int
	// LineShift is the net lines this commit contributed at this location.
	// It is only used when projecting later ranges into shifted coordinates.
	LineShift int
}

// End returns the last line covered by the range.
func (h HunkRange) End() int {
	return h.Start + h.Lines - 1
}

// Intersects reports whether the range overlaps [start, start+lines).
func (h HunkRange) Intersects(start, lines int) bool {
	return h.End() >= start && h.Start < start+lines
}

// Contains reports whether [start, start+lines) sits inside the range
// without touching its first line. The strict low end matters: a hunk
// starting exactly at h.Start is not contained, so it is kept beside the
// range instead of splitting it.
func (h HunkRange) Contains(start, lines int) bool {
	return start > h.Start && start+lines <= h.End()+1
}
