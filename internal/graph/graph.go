// Package graph assembles a segmented view of the commits reachable from the
// current head and the workspace tips. Commits are partitioned into segments,
// maximal linear ancestries carrying at most one reference, and classified
// with flow-sensitive flags (in workspace, integrated, missing from the
// remote). Local branches are reconciled with their remote-tracking
// counterparts even across large histories by keeping lanes alive with goals
// instead of expanding the whole graph.
package graph

import (
	"github.com/go-git/go-git/v5/plumbing"

	"lanes.dev/lanes/internal/meta"
)

// SegmentID indexes a segment within its graph. Segments reference each
// other by id; edges live in a separate table.
type SegmentID int

// NoSegment is the absent segment id.
const NoSegment SegmentID = -1

// noCommit marks an edge endpoint that is not anchored to a commit.
const noCommit = -1

// CommitInfo is one commit inside a segment.
type CommitInfo struct {
	ID      plumbing.Hash
	Parents []plumbing.Hash
	Flags   CommitFlags
	// Refs are the references pointing at this commit, excluding the
	// owning segment's own name.
	Refs []string
}

// Segment is a maximal linear chain of commits sharing one ref name, or
// anonymous. Commits[0] is the tip. A segment ends at a commit whose only
// outgoing edge lands on the first commit of another segment; a mid-segment
// reference forces a split.
type Segment struct {
	ID SegmentID
	// RefName names the segment; empty means anonymous.
	RefName string
	Commits []CommitInfo
	// Metadata carries the workspace document for workspace segments.
	Metadata *meta.Workspace
	// Sibling links a target segment with its local-tracking counterpart.
	Sibling SegmentID
}

// LastCommitFlags returns the flags of the most recently appended commit.
func (s *Segment) LastCommitFlags() CommitFlags {
	if len(s.Commits) == 0 {
		return 0
	}
	return s.Commits[len(s.Commits)-1].Flags
}

// Edge connects two segments, optionally anchored at specific commits.
type Edge struct {
	Src       SegmentID
	SrcCommit int
	SrcID     plumbing.Hash
	Dst       SegmentID
	DstCommit int
	DstID     plumbing.Hash
}

// Entrypoint records where the traversal started.
type Entrypoint struct {
	Segment SegmentID
	// Commit is the index of the starting commit in the segment, or -1 when
	// the segment is empty.
	Commit int
}

// Graph is the segmented traversal output. Nothing is mutated after
// post-processing returns.
type Graph struct {
	segments []*Segment
	edges    []Edge

	// Entrypoint points at the traversal start, once post-processing has
	// materialised it.
	Entrypoint *Entrypoint

	// ExtraTarget is the segment of the extra integration tip, if one was
	// configured.
	ExtraTarget SegmentID

	// Partial is set when the hard limit cut the traversal short; callers
	// should warn that the graph is incomplete.
	Partial bool

	entrypointRef string
	options       Options
}

func newGraph(options Options, entrypointRef string) *Graph {
	return &Graph{
		ExtraTarget:   NoSegment,
		entrypointRef: entrypointRef,
		options:       options,
	}
}

// Segments returns all segments in insertion order.
func (g *Graph) Segments() []*Segment {
	return g.segments
}

// Segment returns the segment with the given id.
func (g *Graph) Segment(id SegmentID) *Segment {
	return g.segments[id]
}

// Edges returns the edge table.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// NumCommits counts the commits across all segments.
func (g *Graph) NumCommits() int {
	n := 0
	for _, s := range g.segments {
		n += len(s.Commits)
	}
	return n
}

// EntrypointRef is the reference the traversal started from, if any.
func (g *Graph) EntrypointRef() string {
	return g.entrypointRef
}

// insertSegment adds a segment and assigns its id.
func (g *Graph) insertSegment(segment *Segment) SegmentID {
	segment.ID = SegmentID(len(g.segments))
	g.segments = append(g.segments, segment)
	return segment.ID
}

// connectSegments records an edge from src (at srcCommit) to dst (at
// dstCommit). Commit indexes may be noCommit when an endpoint has no commits
// yet.
func (g *Graph) connectSegments(src SegmentID, srcCommit int, dst SegmentID, dstCommit int) {
	edge := Edge{
		Src:       src,
		SrcCommit: srcCommit,
		Dst:       dst,
		DstCommit: dstCommit,
	}
	if srcCommit != noCommit && srcCommit < len(g.segments[src].Commits) {
		edge.SrcID = g.segments[src].Commits[srcCommit].ID
	}
	if dstCommit != noCommit && dstCommit < len(g.segments[dst].Commits) {
		edge.DstID = g.segments[dst].Commits[dstCommit].ID
	}
	g.edges = append(g.edges, edge)
}

// connectNewSegment inserts child below parent and records the connecting
// edge.
func (g *Graph) connectNewSegment(parent SegmentID, atCommit int, child *Segment, dstCommit int, dstID plumbing.Hash) SegmentID {
	childID := g.insertSegment(child)
	edge := Edge{
		Src:       parent,
		SrcCommit: atCommit,
		Dst:       childID,
		DstCommit: dstCommit,
		DstID:     dstID,
	}
	if atCommit != noCommit && atCommit < len(g.segments[parent].Commits) {
		edge.SrcID = g.segments[parent].Commits[atCommit].ID
	}
	g.edges = append(g.edges, edge)
	return childID
}

// OutgoingEdges returns the edges leaving a segment.
func (g *Graph) OutgoingEdges(id SegmentID) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Src == id {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns the edges arriving at a segment.
func (g *Graph) IncomingEdges(id SegmentID) []Edge {
	var in []Edge
	for _, e := range g.edges {
		if e.Dst == id {
			in = append(in, e)
		}
	}
	return in
}

// FindSegmentByRef returns the segment carrying the given ref name.
func (g *Graph) FindSegmentByRef(refName string) *Segment {
	for _, s := range g.segments {
		if s.RefName == refName {
			return s
		}
	}
	return nil
}

// FindCommit locates a commit across all segments.
func (g *Graph) FindCommit(id plumbing.Hash) (*Segment, int) {
	for _, s := range g.segments {
		for i := range s.Commits {
			if s.Commits[i].ID == id {
				return s, i
			}
		}
	}
	return nil, -1
}
