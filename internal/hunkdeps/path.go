package hunkdeps

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	"lanes.dev/lanes/internal/diffparse"
)

// PathRanges tracks, for one file within one stack, which commit currently
// owns each line range. Ranges stay sorted by start and in the coordinate
// system of the stack tip absorbed so far. They stay pairwise non-overlapping
// while every new hunk is disjoint from or strictly contained in an earlier
// range; a hunk that overlaps a range in any other way is kept beside it, and
// the two then share lines.
type PathRanges struct {
	Hunks     []HunkRange
	commitIDs map[plumbing.Hash]struct{}
}

// NewPathRanges creates an empty per-path range table.
func NewPathRanges() *PathRanges {
	return &PathRanges{commitIDs: make(map[plumbing.Hash]struct{})}
}

// Find returns the ranges intersecting [start, start+lines).
func (p *PathRanges) Find(start, lines int) []HunkRange {
	var result []HunkRange
	for _, hunk := range p.Hunks {
		if hunk.Intersects(start, lines) {
			result = append(result, hunk)
		}
	}
	return result
}

// Add folds one commit's diffs for this path into the table. The diffs are
// against the commit's parent: old coordinates are the parent's, new
// coordinates the commit's own. Absorbing the same commit twice on one path
// is a programmer error and panics.
func (p *PathRanges) Add(stackID StackID, commitID plumbing.Hash, diffs []diffparse.InputDiff) {
	if p.commitIDs == nil {
		p.commitIDs = make(map[plumbing.Hash]struct{})
	}
	if _, ok := p.commitIDs[commitID]; ok {
		panic(fmt.Sprintf("commit ID already in stack: %s", commitID))
	}
	p.commitIDs[commitID] = struct{}{}

	lineShift := 0
	var newHunks []HunkRange
	var lastHunk *HunkRange

	i, j := 0, 0
	for i < len(diffs) || j < len(p.Hunks) {
		// Take the new diff when its old start precedes the next existing
		// range, or when only new diffs are left.
		var hunks []HunkRange
		if (i < len(diffs) && j < len(p.Hunks) && diffs[i].OldStart < p.Hunks[j].Start) ||
			(i < len(diffs) && j >= len(p.Hunks)) {
			i++
			lineShift += diffs[i-1].NetLines()
			hunks = addNew(diffs[i-1], lastHunk, stackID, commitID)
		} else {
			j++
			hunks = addExisting(p.Hunks[j-1], lastHunk, lineShift)
		}
		// The most recent range is needed to place the next one, so delay
		// inserting it.
		lastHunk = nil
		if len(hunks) > 0 {
			last := hunks[len(hunks)-1]
			lastHunk = &last
			newHunks = append(newHunks, hunks[:len(hunks)-1]...)
		}
	}

	if lastHunk != nil {
		newHunks = append(newHunks, *lastHunk)
	}

	p.Hunks = newHunks
}

// addNew places a range for the incoming diff relative to the most recent
// result range.
func addNew(newDiff diffparse.InputDiff, lastHunk *HunkRange, stackID StackID, commitID plumbing.Hash) []HunkRange {
	incoming := HunkRange{
		StackID:   stackID,
		CommitID:  commitID,
		Start:     newDiff.NewStart,
		Lines:     newDiff.NewLines,
		LineShift: newDiff.NetLines(),
	}

	if lastHunk == nil {
		return []HunkRange{incoming}
	}

	switch {
	case lastHunk.Start+lastHunk.Lines < newDiff.OldStart:
		// Ranges do not overlap; keep them in order.
		return []HunkRange{*lastHunk, incoming}
	case lastHunk.Contains(newDiff.OldStart, newDiff.OldLines):
		// The incoming diff is from the current commit, so it overwrites the
		// middle of the preceding range; split it and retain the tail.
		return []HunkRange{
			{
				StackID:   lastHunk.StackID,
				CommitID:  lastHunk.CommitID,
				Start:     lastHunk.Start,
				Lines:     newDiff.NewStart - lastHunk.Start,
				LineShift: 0,
			},
			incoming,
			{
				StackID:   lastHunk.StackID,
				CommitID:  lastHunk.CommitID,
				Start:     newDiff.NewStart + newDiff.NewLines,
				Lines:     lastHunk.Start + lastHunk.Lines - (newDiff.NewStart + newDiff.NewLines),
				LineShift: lastHunk.LineShift,
			},
		}
	default:
		return []HunkRange{*lastHunk, incoming}
	}
}

// addExisting carries an existing range across, shifted by the net lines of
// the diffs merged so far.
func addExisting(hunk HunkRange, lastHunk *HunkRange, shift int) []HunkRange {
	if lastHunk == nil {
		return []HunkRange{hunk}
	}

	switch {
	case hunk.Start > lastHunk.Start+lastHunk.Lines:
		shifted := hunk
		shifted.Start += shift
		return []HunkRange{*lastHunk, shifted}
	case lastHunk.Contains(hunk.Start, hunk.Lines):
		// Fully overwritten by the incoming commit.
		return []HunkRange{*lastHunk}
	default:
		trimmed := hunk
		trimmed.Start += shift
		trimmed.Lines -= lastHunk.Start + lastHunk.Lines - hunk.Start
		return []HunkRange{*lastHunk, trimmed}
	}
}
