package hunkdeps_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lanes.dev/lanes/internal/diffparse"
	"lanes.dev/lanes/internal/hunkdeps"
)

func TestWorkspaceSimple(t *testing.T) {
	stack1 := uuid.New()
	stack2 := uuid.New()
	path := "test.txt"

	deps := hunkdeps.NewWorkspaceRanges([]hunkdeps.InputStack{
		{
			StackID: stack1,
			Commits: []hunkdeps.InputCommit{{
				CommitID: oid("a"),
				Files: []hunkdeps.InputFile{{
					Path:  path,
					Diffs: []diffparse.InputDiff{mustParse(t, "@@ -1,6 +1,7 @@\n1\n2\n3\n+4\n5\n6\n7\n")},
				}},
			}},
		},
		{
			StackID: stack2,
			Commits: []hunkdeps.InputCommit{{
				CommitID: oid("b"),
				Files: []hunkdeps.InputFile{{
					Path:  path,
					Diffs: []diffparse.InputDiff{mustParse(t, "@@ -1,5 +1,3 @@\n-1\n-2\n3\n5\n6\n")},
				}},
			}},
		},
	})

	require.Empty(t, deps.Errors)
	lookup := deps.Intersection(path, 2, 1)
	require.Len(t, lookup, 1)
	require.Equal(t, oid("a"), lookup[0].CommitID)
	require.Equal(t, stack1, lookup[0].StackID)
}

func TestWorkspaceDistinctPaths(t *testing.T) {
	stack1 := uuid.New()
	stack2 := uuid.New()

	deps := hunkdeps.NewWorkspaceRanges([]hunkdeps.InputStack{
		{
			StackID: stack1,
			Commits: []hunkdeps.InputCommit{{
				CommitID: oid("a"),
				Files: []hunkdeps.InputFile{{
					Path:  "first.txt",
					Diffs: []diffparse.InputDiff{mustParse(t, "@@ -1,6 +1,7 @@\n1\n2\n3\n+4\n5\n6\n7\n")},
				}},
			}},
		},
		{
			StackID: stack2,
			Commits: []hunkdeps.InputCommit{{
				CommitID: oid("b"),
				Files: []hunkdeps.InputFile{{
					Path:  "second.txt",
					Diffs: []diffparse.InputDiff{mustParse(t, "@@ -1,6 +1,7 @@\n1\n2\n3\n+4\n5\n6\n7\n")},
				}},
			}},
		},
	})

	require.Empty(t, deps.Errors)

	first := deps.Intersection("first.txt", 4, 1)
	require.Len(t, first, 1)
	require.Equal(t, oid("a"), first[0].CommitID)
	require.Equal(t, stack1, first[0].StackID)

	second := deps.Intersection("second.txt", 4, 1)
	require.Len(t, second, 1)
	require.Equal(t, oid("b"), second[0].CommitID)
	require.Equal(t, stack2, second[0].StackID)

	require.Empty(t, deps.Intersection("first.txt", 8, 1))
}

// TestWorkspaceCombineShiftLaw checks that the k-th emitted workspace range
// starts at its local start plus the accumulated line shift of the k-1 ranges
// emitted before it.
func TestWorkspaceCombineShiftLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		path := "file.txt"
		stackCount := rapid.IntRange(1, 4).Draw(t, "stacks")

		var stacks []hunkdeps.InputStack
		type local struct {
			start, shift int
		}
		var locals []local

		base := 1
		for s := 0; s < stackCount; s++ {
			hunkCount := rapid.IntRange(1, 3).Draw(t, "hunks")
			var diffs []diffparse.InputDiff
			for h := 0; h < hunkCount; h++ {
				base += rapid.IntRange(1, 5).Draw(t, "gap")
				oldLines := rapid.IntRange(0, 2).Draw(t, "oldLines")
				newLines := rapid.IntRange(1, 3).Draw(t, "newLines")
				diffs = append(diffs, diffparse.InputDiff{
					OldStart: base,
					OldLines: oldLines,
					NewStart: base,
					NewLines: newLines,
				})
				locals = append(locals, local{start: base, shift: newLines - oldLines})
				base += oldLines + 1
			}
			stacks = append(stacks, hunkdeps.InputStack{
				StackID: uuid.New(),
				Commits: []hunkdeps.InputCommit{{
					CommitID: oid([]string{"a", "b", "c", "d"}[s]),
					Files:    []hunkdeps.InputFile{{Path: path, Diffs: diffs}},
				}},
			})
		}

		deps := hunkdeps.NewWorkspaceRanges(stacks)
		require.Empty(t, deps.Errors)

		// Every local range is disjoint and strictly increasing across
		// stacks, so the emission order equals the construction order.
		emitted := deps.Intersection(path, 1, base+100)
		require.Len(t, emitted, len(locals))
		shift := 0
		for k, hunk := range emitted {
			require.Equal(t, locals[k].start+shift, hunk.Start, "range %d", k)
			shift += hunk.LineShift
		}
	})
}
