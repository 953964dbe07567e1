package graph

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"lanes.dev/lanes/internal/errors"
)

// CommitFlags is a fixed-width bitset classifying a commit during one
// traversal. Flags are monotonic: they only ever grow, and they propagate
// from a commit to every later-visited commit queued through it.
type CommitFlags uint32

const (
	// FlagNotInRemote means no remote-tracking branch has been observed to
	// contain the commit
	FlagNotInRemote CommitFlags = 1 << iota
	// FlagInWorkspace means the commit is reachable from a workspace tip
	// within the traversal budget
	FlagInWorkspace
	// FlagIntegrated means the commit is reachable from a target branch
	FlagIntegrated
)

// goalBitOffset is the first bit available for goal flags.
const goalBitOffset = 3

// goalBitCount bounds how many goals a single traversal can allocate.
const goalBitCount = 32 - goalBitOffset

// Has reports whether all bits of other are set.
func (f CommitFlags) Has(other CommitFlags) bool {
	return f&other == other
}

// Goals returns only the goal bits.
func (f CommitFlags) Goals() CommitFlags {
	return f &^ (FlagNotInRemote | FlagInWorkspace | FlagIntegrated)
}

func (f CommitFlags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f.Has(FlagNotInRemote) {
		parts = append(parts, "not-in-remote")
	}
	if f.Has(FlagInWorkspace) {
		parts = append(parts, "in-workspace")
	}
	if f.Has(FlagIntegrated) {
		parts = append(parts, "integrated")
	}
	for bit := goalBitOffset; bit < 32; bit++ {
		if f&(1<<bit) != 0 {
			parts = append(parts, "goal")
		}
	}
	return strings.Join(parts, "|")
}

// Goals hands out goal flag bits keyed to specific commits. A goal keeps a
// traversal lane alive until the commit it is keyed to is reached.
type Goals struct {
	byID map[plumbing.Hash]CommitFlags
	next int
}

// NewGoals creates an empty goal allocator.
func NewGoals() *Goals {
	return &Goals{byID: make(map[plumbing.Hash]CommitFlags), next: goalBitOffset}
}

// FlagFor returns the goal bit keyed to the given commit, allocating one on
// first use. Running out of bits is a hard error, not a silent wrap-around.
func (g *Goals) FlagFor(id plumbing.Hash) (CommitFlags, error) {
	if flag, ok := g.byID[id]; ok {
		return flag, nil
	}
	if g.next-goalBitOffset >= goalBitCount {
		return 0, errors.ErrGoalBitsExhausted
	}
	flag := CommitFlags(1) << g.next
	g.next++
	g.byID[id] = flag
	return flag, nil
}
