package hunkdeps

import (
	"github.com/go-git/go-git/v5/plumbing"

	"lanes.dev/lanes/internal/diffparse"
)

// StackRanges is a stack's entire footprint: one range table per touched path.
type StackRanges struct {
	Paths map[string]*PathRanges
}

// NewStackRanges creates an empty stack footprint.
func NewStackRanges() *StackRanges {
	return &StackRanges{Paths: make(map[string]*PathRanges)}
}

// Add folds one commit's diffs for a path into the stack.
func (s *StackRanges) Add(stackID StackID, commitID plumbing.Hash, path string, diffs []diffparse.InputDiff) {
	ranges, ok := s.Paths[path]
	if !ok {
		ranges = NewPathRanges()
		s.Paths[path] = ranges
	}
	ranges.Add(stackID, commitID, diffs)
}

// UniquePaths returns the set of paths touched by any commit in the stack.
func (s *StackRanges) UniquePaths() map[string]struct{} {
	paths := make(map[string]struct{}, len(s.Paths))
	for path := range s.Paths {
		paths[path] = struct{}{}
	}
	return paths
}

// Intersection returns the ranges of a path intersecting [start, start+lines).
func (s *StackRanges) Intersection(path string, start, lines int) []HunkRange {
	if ranges, ok := s.Paths[path]; ok {
		return ranges.Find(start, lines)
	}
	return nil
}
