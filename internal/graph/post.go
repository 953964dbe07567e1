package graph

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// postProcess cleans the raw traversal result up so it is usable for a
// workspace view: singleton anonymous segments take their disambiguating
// name, remote refs that never met their local counterpart are stripped, and
// the entrypoint is materialised.
func (t *traversal) postProcess(tip plumbing.Hash, hardLimitHit bool) (*Graph, error) {
	g := t.graph
	g.Partial = hardLimitHit
	if t.options.SkipPostprocessing {
		t.materialiseEntrypoint(tip)
		return g, nil
	}

	t.nameAnonymousSegments()
	t.stripUnreachedRemoteRefs()
	t.materialiseEntrypoint(tip)
	return g, nil
}

// nameAnonymousSegments promotes the single local branch of an anonymous
// segment's tip commit into the segment name.
func (t *traversal) nameAnonymousSegments() {
	for _, segment := range t.graph.segments {
		if segment.RefName != "" || len(segment.Commits) == 0 {
			continue
		}
		name := disambiguatedName(segment.Commits[0].Refs)
		if name == "" {
			continue
		}
		segment.RefName = name
		refs := segment.Commits[0].Refs[:0]
		for _, ref := range segment.Commits[0].Refs {
			if ref != name {
				refs = append(refs, ref)
			}
		}
		segment.Commits[0].Refs = refs
	}
}

// stripUnreachedRemoteRefs removes remote-tracking refs from commits unless
// their local counterpart took part in the traversal. Remote refs of foreign
// branches would otherwise clutter commits the workspace never asked about.
func (t *traversal) stripUnreachedRemoteRefs() {
	localInGraph := make(map[string]struct{})
	for _, segment := range t.graph.segments {
		if isLocalBranchRef(segment.RefName) {
			localInGraph[segment.RefName] = struct{}{}
		}
		for _, commit := range segment.Commits {
			for _, ref := range commit.Refs {
				if isLocalBranchRef(ref) {
					localInGraph[ref] = struct{}{}
				}
			}
		}
	}

	keep := func(remoteRef string) bool {
		if _, isTarget := t.targetRefs[remoteRef]; isTarget {
			return true
		}
		local, ok := upstreamLocalForTrackingBranch(t.view, remoteRef, t.tracked)
		if !ok {
			return false
		}
		_, reached := localInGraph[local]
		return reached
	}

	for _, segment := range t.graph.segments {
		for i := range segment.Commits {
			commit := &segment.Commits[i]
			refs := commit.Refs[:0]
			for _, ref := range commit.Refs {
				if isRemoteRef(ref) && !keep(ref) {
					continue
				}
				refs = append(refs, ref)
			}
			commit.Refs = refs
		}
	}
}

// materialiseEntrypoint records the starting position: the segment carrying
// the entry ref, or failing that the segment owning the tip commit.
func (t *traversal) materialiseEntrypoint(tip plumbing.Hash) {
	g := t.graph
	if g.entrypointRef != "" {
		for _, segment := range g.segments {
			if segment.RefName != g.entrypointRef {
				continue
			}
			commitIdx := noCommit
			for i := range segment.Commits {
				if segment.Commits[i].ID == tip {
					commitIdx = i
					break
				}
			}
			g.Entrypoint = &Entrypoint{Segment: segment.ID, Commit: commitIdx}
			return
		}
	}
	if sidx, ok := t.seen[tip]; ok {
		segment := g.Segment(sidx)
		for i := range segment.Commits {
			if segment.Commits[i].ID == tip {
				g.Entrypoint = &Entrypoint{Segment: sidx, Commit: i}
				return
			}
		}
		g.Entrypoint = &Entrypoint{Segment: sidx, Commit: noCommit}
	}
}
