package hunkdeps_test

import (
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lanes.dev/lanes/internal/diffparse"
	"lanes.dev/lanes/internal/hunkdeps"
)

// oid builds a commit id from a repeated nibble, mirroring how test commits
// are usually faked.
func oid(nibble string) plumbing.Hash {
	return plumbing.NewHash(strings.Repeat(nibble, 40))
}

func mustParse(t testing.TB, text string) diffparse.InputDiff {
	t.Helper()
	diff, err := diffparse.Parse(text)
	require.NoError(t, err)
	return diff
}

func TestStackSimple(t *testing.T) {
	diff := mustParse(t, "@@ -1,6 +1,7 @@\n1\n2\n3\n+4\n5\n6\n7\n")
	stack := hunkdeps.NewStackRanges()
	stackID := uuid.New()
	path := "test.txt"

	stack.Add(stackID, oid("a"), path, []diffparse.InputDiff{diff})

	overlapping := stack.Intersection(path, 4, 1)
	require.Len(t, overlapping, 1)
	require.Equal(t, oid("a"), overlapping[0].CommitID)
}

func TestStackComplex(t *testing.T) {
	diff1 := mustParse(t, "@@ -1,6 +1,7 @@\n1\n2\n3\n+4\n5\n6\n7\n")
	diff2 := mustParse(t, "@@ -2,6 +2,7 @@\n2\n3\n4\n+4.5\n5\n6\n7\n")

	stack := hunkdeps.NewStackRanges()
	stackID := uuid.New()
	path := "test.txt"

	stack.Add(stackID, oid("a"), path, []diffparse.InputDiff{diff1})
	stack.Add(stackID, oid("b"), path, []diffparse.InputDiff{diff2})

	require.Len(t, stack.Intersection(path, 4, 1), 1)
	require.Len(t, stack.Intersection(path, 5, 1), 1)
	require.Len(t, stack.Intersection(path, 4, 2), 2)
}

func TestStackBasicLineShift(t *testing.T) {
	// Commit a inserts line 2, commit b prepends a line; the prepended line
	// belongs to b, line 2 is untouched context, line 3 is a's insertion.
	diff1 := mustParse(t, "@@ -1,4 +1,5 @@\na\n+b\na\na\na\n")
	diff2 := mustParse(t, "@@ -1,3 +1,4 @@\n+c\na\nb\na\n")

	stack := hunkdeps.NewStackRanges()
	stackID := uuid.New()
	path := "test.txt"

	stack.Add(stackID, oid("a"), path, []diffparse.InputDiff{diff1})
	stack.Add(stackID, oid("b"), path, []diffparse.InputDiff{diff2})

	result := stack.Intersection(path, 1, 1)
	require.Len(t, result, 1)
	require.Equal(t, oid("b"), result[0].CommitID)

	require.Empty(t, stack.Intersection(path, 2, 1))

	result = stack.Intersection(path, 3, 1)
	require.Len(t, result, 1)
	require.Equal(t, oid("a"), result[0].CommitID)
}

func TestStackMultipleOverwrites(t *testing.T) {
	stack := hunkdeps.NewStackRanges()
	stackID := uuid.New()
	path := "test.txt"

	stack.Add(stackID, oid("a"), path, []diffparse.InputDiff{
		mustParse(t, "@@ -1,0 +1,7 @@\n+a\n+a\n+a\n+a\n+a\n+a\n+a\n"),
	})
	stack.Add(stackID, oid("b"), path, []diffparse.InputDiff{
		mustParse(t, "@@ -1,5 +1,5 @@\na\n-a\n+b\na\na\na\n"),
	})
	stack.Add(stackID, oid("c"), path, []diffparse.InputDiff{
		mustParse(t, "@@ -1,7 +1,7 @@\na\nb\na\n-a\n+b\na\na\na\n"),
	})
	stack.Add(stackID, oid("d"), path, []diffparse.InputDiff{
		mustParse(t, "@@ -3,5 +3,5 @@\na\nb\na\n-a\n+b\na\n"),
	})

	for line, want := range map[int]plumbing.Hash{
		1: oid("a"),
		2: oid("b"),
		4: oid("c"),
		6: oid("d"),
	} {
		result := stack.Intersection(path, line, 1)
		require.Len(t, result, 1, "line %d", line)
		require.Equal(t, want, result[0].CommitID, "line %d", line)
	}
}

func TestStackDetectDeletion(t *testing.T) {
	diff := mustParse(t, "@@ -1,7 +1,6 @@\na\na\na\n-a\na\na\na\n")
	stack := hunkdeps.NewStackRanges()
	stackID := uuid.New()
	path := "test.txt"

	stack.Add(stackID, oid("a"), path, []diffparse.InputDiff{diff})

	result := stack.Intersection(path, 3, 2)
	require.Len(t, result, 1)
	require.Equal(t, oid("a"), result[0].CommitID)
}

// TestPathRanges_AddContainedPrefixBoundary pins the containment boundary: a
// later hunk starting exactly at an earlier range's first line does not split
// that range; both ranges are kept and both are found at that line.
func TestPathRanges_AddContainedPrefixBoundary(t *testing.T) {
	ranges := hunkdeps.NewPathRanges()
	stackID := uuid.New()

	ranges.Add(stackID, oid("a"), []diffparse.InputDiff{
		{OldStart: 2, OldLines: 2, NewStart: 2, NewLines: 2},
	})
	ranges.Add(stackID, oid("b"), []diffparse.InputDiff{
		{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1},
	})

	found := ranges.Find(2, 1)
	require.Len(t, found, 2)
	require.Equal(t, oid("a"), found[0].CommitID)
	require.Equal(t, oid("b"), found[1].CommitID)
}

func TestPathRangesDoubleInsertPanics(t *testing.T) {
	ranges := hunkdeps.NewPathRanges()
	stackID := uuid.New()
	diffs := []diffparse.InputDiff{{OldStart: 1, OldLines: 1, NewStart: 1, NewLines: 1}}

	ranges.Add(stackID, oid("a"), diffs)
	require.Panics(t, func() {
		ranges.Add(stackID, oid("a"), diffs)
	})
}

// TestPathRangesMonotonic checks that as long as each commit's hunks are
// either disjoint from or properly contained in earlier ranges, the table
// stays sorted and pairwise non-overlapping after every add.
func TestPathRangesMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ranges := hunkdeps.NewPathRanges()
		stackID := uuid.New()

		commits := rapid.IntRange(1, 10).Draw(t, "commits")
		for c := 0; c < commits; c++ {
			var diff diffparse.InputDiff

			// Pick a range strictly inside an existing one (a split), or a
			// fresh range past everything recorded so far.
			var host *hunkdeps.HunkRange
			for i := range ranges.Hunks {
				if ranges.Hunks[i].Lines >= 3 {
					host = &ranges.Hunks[i]
					break
				}
			}
			if host != nil && rapid.Bool().Draw(t, "contained") {
				start := rapid.IntRange(host.Start+1, host.End()-1).Draw(t, "start")
				lines := rapid.IntRange(1, host.End()-start).Draw(t, "lines")
				diff = diffparse.InputDiff{
					OldStart: start,
					OldLines: lines,
					NewStart: start,
					NewLines: rapid.IntRange(1, lines).Draw(t, "newLines"),
				}
			} else {
				maxEnd := 0
				for _, hunk := range ranges.Hunks {
					if hunk.End() > maxEnd {
						maxEnd = hunk.End()
					}
				}
				start := maxEnd + 2 + rapid.IntRange(0, 5).Draw(t, "gap")
				diff = diffparse.InputDiff{
					OldStart: start,
					OldLines: rapid.IntRange(0, 3).Draw(t, "oldLines"),
					NewStart: start,
					NewLines: rapid.IntRange(1, 4).Draw(t, "newLines"),
				}
			}

			id := plumbing.ComputeHash(plumbing.BlobObject, []byte{byte(c)})
			ranges.Add(stackID, id, []diffparse.InputDiff{diff})

			for i := 1; i < len(ranges.Hunks); i++ {
				prev, cur := ranges.Hunks[i-1], ranges.Hunks[i]
				require.LessOrEqual(t, prev.Start, cur.Start, "sorted by start")
				if prev.Lines > 0 && cur.Lines > 0 {
					require.Less(t, prev.End(), cur.Start, "non-overlapping")
				}
			}
		}
	})
}
