// Package worktree enumerates everything that would have to be added to
// HEAD^{tree} to equal the current worktree, as a canonical set of tree
// changes. It joins the tree↔index and index↔worktree views of the
// repository's status and normalises mode changes, renames, intents-to-add
// and submodule tips.
package worktree

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// EntryKind is the kind of a tree entry a change refers to.
type EntryKind int

const (
	// KindBlob is a regular file
	KindBlob EntryKind = iota
	// KindBlobExecutable is a file with the executable bit set
	KindBlobExecutable
	// KindLink is a symbolic link
	KindLink
	// KindCommit is a submodule tip
	KindCommit
)

func (k EntryKind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindBlobExecutable:
		return "blob(exe)"
	case KindLink:
		return "link"
	case KindCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// ChangeState describes one side of a change. A zero ID means the content
// lives in the working tree and has not been hashed yet.
type ChangeState struct {
	ID   plumbing.Hash
	Kind EntryKind
}

// StatusKind discriminates the variants of a TreeChange.
type StatusKind int

const (
	// StatusAddition is a new entry
	StatusAddition StatusKind = iota
	// StatusDeletion is a removed entry
	StatusDeletion
	// StatusModification is a changed entry
	StatusModification
	// StatusRename is an entry moved to a new path
	StatusRename
)

func (s StatusKind) String() string {
	switch s {
	case StatusAddition:
		return "addition"
	case StatusDeletion:
		return "deletion"
	case StatusModification:
		return "modification"
	case StatusRename:
		return "rename"
	default:
		return "unknown"
	}
}

// TreeChange is one canonical change between HEAD^{tree} and the worktree.
// The populated fields depend on Status:
//
//   - StatusAddition: State, Untracked
//   - StatusDeletion: PreviousState
//   - StatusModification: PreviousState, State, Flags
//   - StatusRename: PreviousPath, PreviousState, State, Flags
type TreeChange struct {
	Path   string
	Status StatusKind

	PreviousPath  string
	PreviousState ChangeState
	State         ChangeState
	Untracked     bool
	Flags         ModeFlags
}

// IgnoredReason says why a change was kept out of WorktreeChanges.Changes.
type IgnoredReason int

const (
	// IgnoredConflict marks a path with an unresolved merge conflict
	IgnoredConflict IgnoredReason = iota
	// IgnoredDuplicate marks a tree↔index change shadowed by an
	// index↔worktree change of the same path
	IgnoredDuplicate
)

// IgnoredWorktreeChange is a change that was seen but deliberately not
// surfaced.
type IgnoredWorktreeChange struct {
	Path   string
	Reason IgnoredReason
}

// WorktreeChanges is the canonical status of the worktree.
type WorktreeChanges struct {
	Changes        []TreeChange
	IgnoredChanges []IgnoredWorktreeChange
}

// ModeFlags summarises the mode transition between the two states of a
// change.
type ModeFlags uint8

const (
	// ModeExecBitAdded means the executable bit was turned on
	ModeExecBitAdded ModeFlags = 1 << iota
	// ModeExecBitRemoved means the executable bit was turned off
	ModeExecBitRemoved
	// ModeTypeChange means the entry changed type (file to link, etc.)
	ModeTypeChange
)

// CalculateModeFlags derives the mode transition between two states.
func CalculateModeFlags(previous, current ChangeState) ModeFlags {
	var flags ModeFlags
	switch {
	case previous.Kind == KindBlob && current.Kind == KindBlobExecutable:
		flags |= ModeExecBitAdded
	case previous.Kind == KindBlobExecutable && current.Kind == KindBlob:
		flags |= ModeExecBitRemoved
	case previous.Kind != current.Kind:
		flags |= ModeTypeChange
	}
	return flags
}
