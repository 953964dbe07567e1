package graph

import "github.com/go-git/go-git/v5/plumbing"

// Options configure FromHead and FromCommitTraversal.
type Options struct {
	// CollectTags associates tag references with commits.
	CollectTags bool

	// CommitsLimitHint is the soft maximum number of commits each lane may
	// traverse. Workspaces with a target branch rely on the target to stop
	// the traversal instead. Zero means unlimited.
	//
	// This is a hint, not an exact measure; lanes may see more commits, for
	// instance to let remote branches find their local branch.
	CommitsLimitHint int

	// CommitsLimitRechargeLocation lists commits at which a lane's budget
	// resets to CommitsLimitHint, directing where the commit budget is spent.
	CommitsLimitRechargeLocation []plumbing.Hash

	// HardLimit caps the total number of queued commits as a last line of
	// defence against runaway traversals. On breach the traversal halts and
	// the returned graph is marked partial. Zero means no cap.
	HardLimit int

	// ExtraTargetCommitID makes a commit act like the tip of an additional
	// target reference: everything it touches is considered integrated.
	// Typically a past position of an existing target.
	ExtraTargetCommitID plumbing.Hash

	// SkipPostprocessing returns the raw traversal result. Only useful when
	// post-processing itself misbehaves and one wants to see the version
	// before it.
	SkipPostprocessing bool
}

// LimitedOptions returns options that won't traverse the whole graph if
// there is no workspace, but show more than enough commits by default.
func LimitedOptions() Options {
	return Options{
		CollectTags:      false,
		CommitsLimitHint: 300,
	}
}

// WithLimitHint sets the per-lane commit budget.
func (o Options) WithLimitHint(limit int) Options {
	o.CommitsLimitHint = limit
	return o
}

// WithHardLimit sets the absolute queued-commit cap. This stops traversal
// early despite not having discovered all desired graph partitions, possibly
// leading to incomplete results.
func (o Options) WithHardLimit(limit int) Options {
	o.HardLimit = limit
	return o
}

// WithLimitExtensionAt records commits at which the traversal budget resets.
func (o Options) WithLimitExtensionAt(commits ...plumbing.Hash) Options {
	o.CommitsLimitRechargeLocation = append(o.CommitsLimitRechargeLocation, commits...)
	return o
}
