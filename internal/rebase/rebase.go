// Package rebase builds and executes rebase plans over a base commit. Steps
// are validated as they are added so an invalid plan never produces partial
// state; execution replays each step's tree delta in-memory and reports where
// named references should end up.
package rebase

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"lanes.dev/lanes/internal/errors"
)

// Step is one entry of a rebase plan.
type Step interface {
	isStep()
}

// PickStep cherry-picks a commit, optionally rewording it.
type PickStep struct {
	CommitID   plumbing.Hash
	NewMessage *string
}

// MergeStep merges a commit into the current position.
type MergeStep struct {
	CommitID   plumbing.Hash
	NewMessage string
}

// FixupStep squashes a commit into the step before it.
type FixupStep struct {
	CommitID   plumbing.Hash
	NewMessage *string
}

// ReferenceStep records where a named reference should point after the
// rebase.
type ReferenceStep struct {
	Name string
}

func (PickStep) isStep()      {}
func (MergeStep) isStep()     {}
func (FixupStep) isStep()     {}
func (ReferenceStep) isStep() {}

// ReferenceSpec says where a reference ends up, and which commit it pointed
// at before the rebase.
type ReferenceSpec struct {
	Name             string
	CommitID         plumbing.Hash
	PreviousCommitID plumbing.Hash
}

// Output is the result of executing a plan.
type Output struct {
	TopCommit  plumbing.Hash
	References []ReferenceSpec
}

// Builder validates and accumulates rebase steps on top of a base commit.
type Builder struct {
	repo  *gogit.Repository
	base  plumbing.Hash
	steps []Step
	// picked tracks commits used by pick, merge and fixup steps.
	picked map[plumbing.Hash]struct{}
}

// NewBuilder creates a plan builder; the base commit must exist.
func NewBuilder(repo *gogit.Repository, base plumbing.Hash) (*Builder, error) {
	if _, err := repo.CommitObject(base); err != nil {
		return nil, errors.NewObjectNotFoundError(base.String())
	}
	return &Builder{
		repo:   repo,
		base:   base,
		picked: make(map[plumbing.Hash]struct{}),
	}, nil
}

// Step validates and appends one step. The builder is returned for chaining;
// on a validation failure no state changes.
func (b *Builder) Step(step Step) (*Builder, error) {
	switch s := step.(type) {
	case PickStep:
		if err := b.checkCommitStep(s.CommitID, "Pick"); err != nil {
			return nil, err
		}
	case MergeStep:
		if err := b.checkCommitStep(s.CommitID, "Merge"); err != nil {
			return nil, err
		}
	case FixupStep:
		if err := b.checkCommitStep(s.CommitID, "Fixup"); err != nil {
			return nil, err
		}
		if len(b.steps) == 0 {
			return nil, errors.NewPlanError("Fixup must have a commit to work on")
		}
		if _, isRef := b.steps[len(b.steps)-1].(ReferenceStep); isRef {
			return nil, errors.NewPlanError("Fixup commit must not come after a reference step")
		}
	case ReferenceStep:
		if s.Name == "" {
			return nil, errors.NewPlanError("Reference step must have a non-empty name")
		}
	default:
		return nil, fmt.Errorf("unknown rebase step %T", step)
	}

	if id, ok := stepCommit(step); ok {
		b.picked[id] = struct{}{}
	}
	b.steps = append(b.steps, step)
	return b, nil
}

// checkCommitStep enforces the rules shared by pick, merge and fixup.
func (b *Builder) checkCommitStep(id plumbing.Hash, kind string) error {
	if _, err := b.repo.CommitObject(id); err != nil {
		return errors.NewObjectNotFoundError(id.String())
	}
	if id == b.base {
		return errors.NewPlanError(fmt.Sprintf("%s commit cannot be the base commit", kind))
	}
	if _, used := b.picked[id]; used {
		return errors.NewPlanError("Picked commit already exists in a previous step")
	}
	return nil
}

func stepCommit(step Step) (plumbing.Hash, bool) {
	switch s := step.(type) {
	case PickStep:
		return s.CommitID, true
	case MergeStep:
		return s.CommitID, true
	case FixupStep:
		return s.CommitID, true
	default:
		return plumbing.ZeroHash, false
	}
}

// Steps returns the validated plan so far.
func (b *Builder) Steps() []Step {
	return b.steps
}

// Rebase executes the plan and returns the resulting top commit along with
// the reference positions the caller should apply.
func (b *Builder) Rebase() (*Output, error) {
	cursor := b.base
	// lastOriginal remembers which original commit the cursor stands in for,
	// so reference steps can report what they used to point at.
	lastOriginal := b.base
	var references []ReferenceSpec

	for _, step := range b.steps {
		switch s := step.(type) {
		case PickStep:
			newID, err := b.replayOnto(cursor, s.CommitID, s.NewMessage, nil)
			if err != nil {
				return nil, err
			}
			cursor = newID
			lastOriginal = s.CommitID
		case FixupStep:
			newID, err := b.squashInto(cursor, s.CommitID, s.NewMessage)
			if err != nil {
				return nil, err
			}
			cursor = newID
			lastOriginal = s.CommitID
		case MergeStep:
			message := s.NewMessage
			newID, err := b.replayOnto(cursor, s.CommitID, &message, []plumbing.Hash{s.CommitID})
			if err != nil {
				return nil, err
			}
			cursor = newID
			lastOriginal = s.CommitID
		case ReferenceStep:
			references = append(references, ReferenceSpec{
				Name:             s.Name,
				CommitID:         cursor,
				PreviousCommitID: lastOriginal,
			})
		}
	}

	return &Output{TopCommit: cursor, References: references}, nil
}

// replayOnto applies a commit's tree delta onto the cursor and writes the
// replacement commit. extraParents turns the result into a merge.
func (b *Builder) replayOnto(cursor plumbing.Hash, commitID plumbing.Hash, newMessage *string, extraParents []plumbing.Hash) (plumbing.Hash, error) {
	original, err := b.repo.CommitObject(commitID)
	if err != nil {
		return plumbing.ZeroHash, errors.NewObjectNotFoundError(commitID.String())
	}

	treeHash, err := b.replayTree(cursor, original)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	message := original.Message
	if newMessage != nil {
		message = *newMessage
	}

	parents := append([]plumbing.Hash{cursor}, extraParents...)
	return b.writeCommit(original, message, treeHash, parents)
}

// squashInto folds a commit's tree delta into the cursor commit, keeping the
// cursor's parents.
func (b *Builder) squashInto(cursor plumbing.Hash, commitID plumbing.Hash, newMessage *string) (plumbing.Hash, error) {
	fixup, err := b.repo.CommitObject(commitID)
	if err != nil {
		return plumbing.ZeroHash, errors.NewObjectNotFoundError(commitID.String())
	}
	cursorCommit, err := b.repo.CommitObject(cursor)
	if err != nil {
		return plumbing.ZeroHash, errors.NewObjectNotFoundError(cursor.String())
	}

	treeHash, err := b.replayTree(cursor, fixup)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	message := cursorCommit.Message
	if newMessage != nil {
		message = *newMessage
	}

	return b.writeCommit(cursorCommit, message, treeHash, cursorCommit.ParentHashes)
}

// replayTree computes the tree of "original's changes applied on top of
// cursor's tree".
func (b *Builder) replayTree(cursor plumbing.Hash, original *object.Commit) (plumbing.Hash, error) {
	cursorCommit, err := b.repo.CommitObject(cursor)
	if err != nil {
		return plumbing.ZeroHash, errors.NewObjectNotFoundError(cursor.String())
	}
	cursorTree, err := cursorCommit.Tree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read tree of %s: %w", cursor, err)
	}

	originalTree, err := original.Tree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read tree of %s: %w", original.Hash, err)
	}
	var parentTree *object.Tree
	if original.NumParents() > 0 {
		parent, err := original.Parent(0)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to read parent of %s: %w", original.Hash, err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to read parent tree of %s: %w", original.Hash, err)
		}
	}

	return applyTreeDelta(b.repo, cursorTree, parentTree, originalTree)
}

func (b *Builder) writeCommit(template *object.Commit, message string, tree plumbing.Hash, parents []plumbing.Hash) (plumbing.Hash, error) {
	commit := &object.Commit{
		Author:       template.Author,
		Committer:    template.Committer,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj := b.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode commit: %w", err)
	}
	id, err := b.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store commit: %w", err)
	}
	return id, nil
}
