package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"lanes.dev/lanes/internal/errors"
	"lanes.dev/lanes/internal/meta"
)

// workspaceInfo is one workspace discovered from the metadata store, with its
// tip resolved.
type workspaceInfo struct {
	tip     plumbing.Hash
	refName string
	meta    *meta.Workspace
}

// traversal carries the state of one graph construction.
type traversal struct {
	graph   *Graph
	view    *repoView
	store   meta.Store
	options Options

	goals           *Goals
	seen            map[plumbing.Hash]SegmentID
	next            *queue
	refsByID        map[plumbing.Hash][]string
	symbolicRemotes []string
	tracked         map[string]string
	targetRefs      map[string]struct{}
	maxLimit        limit
}

// FromHead reads the repository's HEAD and represents whatever is visible as
// a graph.
func FromHead(repo *gogit.Repository, store meta.Store, options Options) (*Graph, error) {
	return fromHeadWithOverlay(repo, store, options, Overlay{})
}

// FromCommitTraversal produces the graph of everything reachable from tip.
// refName is assumed to point at tip if given.
func FromCommitTraversal(repo *gogit.Repository, tip plumbing.Hash, refName string, store meta.Store, options Options) (*Graph, error) {
	view, overlayStore, _ := Overlay{}.intoParts(repo, store)
	return fromCommitTraversalInner(view, overlayStore, tip, refName, options)
}

// RedoTraversalWithOverlay repeats the traversal that generated this graph,
// serving the overlay's references and metadata from memory. The result shows
// the graph as it will be once the overlay's changes are actually made.
func (g *Graph) RedoTraversalWithOverlay(repo *gogit.Repository, store meta.Store, overlay Overlay) (*Graph, error) {
	view, overlayStore, entrypoint := overlay.intoParts(repo, store)
	if entrypoint != nil {
		return fromCommitTraversalInner(view, overlayStore, entrypoint.Tip, entrypoint.RefName, g.options)
	}
	if g.Entrypoint == nil {
		return nil, fmt.Errorf("graph has no entrypoint to redo from")
	}
	segment := g.Segment(g.Entrypoint.Segment)
	refName := segment.RefName
	tip, ok := g.tipOf(segment)
	if !ok {
		return nil, fmt.Errorf("entrypoint segment has no commit to redo from")
	}
	return fromCommitTraversalInner(view, overlayStore, tip, refName, g.options)
}

// tipOf finds the first commit at or below a segment.
func (g *Graph) tipOf(segment *Segment) (plumbing.Hash, bool) {
	if len(segment.Commits) > 0 {
		return segment.Commits[0].ID, true
	}
	for _, edge := range g.OutgoingEdges(segment.ID) {
		if tip, ok := g.tipOf(g.Segment(edge.Dst)); ok {
			return tip, true
		}
	}
	return plumbing.ZeroHash, false
}

func fromHeadWithOverlay(repo *gogit.Repository, store meta.Store, options Options, overlay Overlay) (*Graph, error) {
	view, overlayStore, entrypoint := overlay.intoParts(repo, store)
	if entrypoint != nil {
		return fromCommitTraversalInner(view, overlayStore, entrypoint.Tip, entrypoint.RefName, options)
	}

	head, err := view.head()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}

	if head.Type() == plumbing.SymbolicReference {
		targetName := head.Target()
		tip, ok := view.resolveRef(targetName)
		if !ok {
			// Unborn head: a graph with one empty segment named after the
			// symbolic target.
			g := newGraph(options, targetName.String())
			sidx := g.insertSegment(&Segment{RefName: targetName.String(), Sibling: NoSegment})
			g.Entrypoint = &Entrypoint{Segment: sidx, Commit: noCommit}
			return g, nil
		}
		return fromCommitTraversalInner(view, overlayStore, tip, targetName.String(), options)
	}

	// Detached head: traverse from the peeled id without a ref name, then
	// undo the eager naming so the graph shows it's detached.
	tip := view.peel(head.Hash())
	g, err := fromCommitTraversalInner(view, overlayStore, tip, "", options)
	if err != nil {
		return nil, err
	}
	if g.Entrypoint != nil {
		s := g.Segment(g.Entrypoint.Segment)
		if s.RefName != "" && len(s.Commits) > 0 {
			s.Commits[0].Refs = append([]string{s.RefName}, s.Commits[0].Refs...)
			s.RefName = ""
		}
	}
	return g, nil
}

func fromCommitTraversalInner(view *repoView, store meta.Store, tip plumbing.Hash, refName string, options Options) (*Graph, error) {
	if isRemoteRef(refName) {
		return nil, errors.ErrRemoteStartPosition
	}

	t := &traversal{
		graph:      newGraph(options, refName),
		view:       view,
		store:      store,
		options:    options,
		goals:      NewGoals(),
		seen:       make(map[plumbing.Hash]SegmentID),
		next:       newQueue(options.HardLimit),
		targetRefs: make(map[string]struct{}),
		maxLimit:   newLimit(options.CommitsLimitHint),
	}

	var err error
	t.tracked, err = configuredRemoteTrackingBranches(view)
	if err != nil {
		return nil, err
	}

	workspaces, err := t.obtainWorkspaceInfos()
	if err != nil {
		return nil, err
	}
	t.symbolicRemotes = symbolicRemotesOf(view, workspaces)

	if err := t.collectRefsByID(workspaces); err != nil {
		return nil, err
	}

	tipGoal, err := t.goals.FlagFor(tip)
	if err != nil {
		return nil, err
	}
	// The tip transports itself.
	tipFlags := FlagNotInRemote | tipGoal

	if err := t.seed(tip, refName, tipFlags, workspaces); err != nil {
		return nil, err
	}

	hardLimitHit, err := t.run()
	if err != nil {
		return nil, err
	}

	return t.postProcess(tip, hardLimitHit)
}

// obtainWorkspaceInfos resolves every workspace entry's tip, dropping the
// ones whose ref does not exist.
func (t *traversal) obtainWorkspaceInfos() ([]workspaceInfo, error) {
	entries, err := t.store.Workspaces()
	if err != nil {
		return nil, err
	}
	var out []workspaceInfo
	for _, entry := range entries {
		tip, ok := t.view.resolveRef(plumbing.ReferenceName(entry.RefName))
		if !ok {
			log.Warn("ignoring workspace with non-existing ref", "ref", entry.RefName)
			continue
		}
		out = append(out, workspaceInfo{tip: tip, refName: entry.RefName, meta: entry.Workspace})
		if entry.Workspace != nil && entry.Workspace.TargetRef != nil {
			t.targetRefs[*entry.Workspace.TargetRef] = struct{}{}
		}
	}
	return out, nil
}

// collectRefsByID builds the prefix index of references by commit id for
// refs/heads/, refs/remotes/ and optionally refs/tags/, excluding the
// workspace refs themselves.
func (t *traversal) collectRefsByID(workspaces []workspaceInfo) error {
	exclude := make(map[string]struct{}, len(workspaces))
	for _, ws := range workspaces {
		exclude[ws.refName] = struct{}{}
	}
	t.refsByID = make(map[plumbing.Hash][]string)
	err := t.view.forEachRef(func(name plumbing.ReferenceName, target plumbing.Hash) error {
		ns := name.String()
		if !isLocalBranchRef(ns) && !isRemoteRef(ns) && !(t.options.CollectTags && strings.HasPrefix(ns, tagsPrefix)) {
			return nil
		}
		if _, excluded := exclude[ns]; excluded {
			return nil
		}
		t.refsByID[target] = append(t.refsByID[target], ns)
		return nil
	})
	if err != nil {
		return err
	}
	for _, refs := range t.refsByID {
		sort.Strings(refs)
	}
	return nil
}

// seed enqueues the initial tips: workspace and target tips at the front of
// the deque, ordinary heads and workspace-listed branch tips at the back.
func (t *traversal) seed(tip plumbing.Hash, refName string, tipFlags CommitFlags, workspaces []workspaceInfo) error {
	g := t.graph

	tipIsWorkspace := false
	for _, ws := range workspaces {
		if ws.refName == refName {
			tipIsWorkspace = true
		}
	}

	if !tipIsWorkspace {
		segment := t.branchSegment(refName, tip)
		sidx := g.insertSegment(segment)
		if t.next.pushBack(queueItem{
			id:          tip,
			flags:       tipFlags,
			instruction: instruction{kind: collectCommit, segment: sidx},
			limit:       t.maxLimit,
		}) {
			return nil
		}
	}

	for _, ws := range workspaces {
		wsFlags := CommitFlags(0)
		wsLimit := t.maxLimit
		if ws.refName == refName {
			wsFlags = tipFlags
		} else {
			var err error
			wsLimit, err = t.maxLimit.withIndirectGoal(tip, t.goals)
			if err != nil {
				return err
			}
		}

		wsSegment := &Segment{RefName: ws.refName, Metadata: ws.meta, Sibling: NoSegment}
		wsIdx := g.insertSegment(wsSegment)
		// Workspaces typically have integration branches which help stop the
		// traversal, so their lanes go first.
		if t.next.pushFront(queueItem{
			id:          ws.tip,
			flags:       FlagInWorkspace | FlagNotInRemote | wsFlags,
			instruction: instruction{kind: collectCommit, segment: wsIdx},
			limit:       wsLimit,
		}) {
			return nil
		}

		if err := t.seedTarget(tip, ws); err != nil {
			return err
		}
	}

	if err := t.seedExtraTarget(tip); err != nil {
		return err
	}

	// Assure we see branches that possibly advanced beyond the workspace
	// commit and thus aren't reachable from it.
	for _, ws := range workspaces {
		if ws.meta == nil {
			continue
		}
		for _, stack := range ws.meta.Stacks {
			for _, branch := range stack.Branches {
				branchTip, ok := t.view.resolveRef(plumbing.ReferenceName(branch.RefName))
				if !ok || t.next.isQueued(branchTip) {
					continue
				}
				segment := t.branchSegment("", branchTip)
				sidx := g.insertSegment(segment)
				if t.next.pushBack(queueItem{
					id:          branchTip,
					flags:       FlagNotInRemote,
					instruction: instruction{kind: collectCommit, segment: sidx},
					limit:       t.maxLimit,
				}) {
					return nil
				}
			}
		}
	}
	return nil
}

// seedTarget queues a workspace's target branch as an integrated lane, along
// with the target's local-tracking counterpart so the two can meet.
func (t *traversal) seedTarget(tip plumbing.Hash, ws workspaceInfo) error {
	if ws.meta == nil || ws.meta.TargetRef == nil {
		return nil
	}
	targetRef := *ws.meta.TargetRef
	targetID, ok := t.view.resolveRef(plumbing.ReferenceName(targetRef))
	if !ok {
		log.Warn("ignoring non-existing target branch", "ref", targetRef)
		return nil
	}

	g := t.graph
	targetSegment := &Segment{RefName: targetRef, Sibling: NoSegment}
	targetIdx := g.insertSegment(targetSegment)

	localGoal := CommitFlags(0)
	localSidx := NoSegment
	if localRef, ok := upstreamLocalForTrackingBranch(t.view, targetRef, t.tracked); ok {
		if localTip, ok := t.view.resolveRef(plumbing.ReferenceName(localRef)); ok && !t.next.isQueued(localTip) {
			localSegment := t.branchSegment("", localTip)
			localSegment.Sibling = targetIdx
			sidx := g.insertSegment(localSegment)
			// Naming is based on ambiguity; if it resolved to something else,
			// the sibling link does not hold.
			if localSegment.RefName != localRef {
				localSegment.Sibling = NoSegment
			} else {
				localSidx = sidx
			}
			goal, err := t.goals.FlagFor(localTip)
			if err != nil {
				return err
			}
			localGoal = goal
			localLimit, err := t.maxLimit.withIndirectGoal(tip, t.goals)
			if err != nil {
				return err
			}
			if t.next.pushFront(queueItem{
				id:          localTip,
				flags:       FlagNotInRemote | goal,
				instruction: instruction{kind: collectCommit, segment: sidx},
				limit:       localLimit.withoutAllowance(),
			}) {
				return nil
			}
			t.next.addGoalTo(tip, goal)
		}
	}

	// The limits of the target and the worktree tips are synced so they can
	// always find each other, while stopping once the entrypoint is included.
	targetLimit, err := t.maxLimit.withIndirectGoal(tip, t.goals)
	if err != nil {
		return err
	}
	if t.next.pushFront(queueItem{
		id:          targetID,
		flags:       FlagIntegrated,
		instruction: instruction{kind: collectCommit, segment: targetIdx},
		limit:       targetLimit.additionalGoal(localGoal).withoutAllowance(),
	}) {
		return nil
	}
	targetSegment.Sibling = localSidx
	return nil
}

// seedExtraTarget treats an arbitrary commit as an additional integration
// tip, extending the border of the workspace.
func (t *traversal) seedExtraTarget(tip plumbing.Hash) error {
	extra := t.options.ExtraTargetCommitID
	if extra.IsZero() {
		return nil
	}
	for _, item := range t.next.items {
		if item.id == extra {
			// Assume the queued settings are close enough.
			t.graph.ExtraTarget = item.instruction.segmentIdx()
			return nil
		}
	}
	segment := t.branchSegment("", extra)
	sidx := t.graph.insertSegment(segment)
	extraLimit, err := t.maxLimit.withIndirectGoal(tip, t.goals)
	if err != nil {
		return err
	}
	if t.next.pushFront(queueItem{
		id:          extra,
		flags:       FlagIntegrated,
		instruction: instruction{kind: collectCommit, segment: sidx},
		limit:       extraLimit.withoutAllowance(),
	}) {
		return nil
	}
	t.graph.ExtraTarget = sidx
	return nil
}

// branchSegment creates a segment, naming it from the given ref or, when
// absent, from an unambiguous branch pointing at the commit.
func (t *traversal) branchSegment(refName string, at plumbing.Hash) *Segment {
	if refName == "" && !at.IsZero() {
		refName = disambiguatedName(t.refsByID[at])
	}
	return &Segment{RefName: refName, Sibling: NoSegment}
}

// disambiguatedName picks the single local branch among refs, if there is
// exactly one.
func disambiguatedName(refs []string) string {
	name := ""
	for _, ref := range refs {
		if !isLocalBranchRef(ref) {
			continue
		}
		if name != "" {
			return ""
		}
		name = ref
	}
	return name
}

// run drives the main loop until the queue drains or the hard limit hits.
func (t *traversal) run() (hardLimitHit bool, err error) {
	recharge := make(map[plumbing.Hash]struct{}, len(t.options.CommitsLimitRechargeLocation))
	for _, id := range t.options.CommitsLimitRechargeLocation {
		recharge[id] = struct{}{}
	}

	for {
		item, ok := t.next.popFront()
		if !ok {
			return false, nil
		}
		if _, isRecharge := recharge[item.id]; isRecharge {
			item.limit.setButKeepGoal(t.maxLimit)
		}

		commit, err := t.view.commit(item.id)
		if err != nil {
			// Malformed or missing objects must not break the graph.
			log.Warn("ignoring unreadable commit", "id", item.id, "err", err)
			continue
		}

		// Flags may have grown since the item was queued; pick up whatever
		// the destination segment has seen in the meantime.
		srcFlags := t.graph.Segment(item.instruction.segmentIdx()).LastCommitFlags()
		propagated := item.flags | srcFlags
		item.limit.discharge(propagated)

		var sidx SegmentID
		switch item.instruction.kind {
		case collectCommit:
			if _, occupied := t.seen[item.id]; occupied {
				src := item.instruction.segmentIdx()
				t.splitOccupiedSegment(item.id, propagated, src, len(t.graph.Segment(src).Commits)-1)
				continue
			}
			sidx = t.maybeSplitAtBranch(item.instruction.segmentIdx(), item.id)
		case connectNewSegment:
			if _, occupied := t.seen[item.id]; occupied {
				t.splitOccupiedSegment(item.id, propagated, item.instruction.segmentIdx(), item.instruction.atCommit)
				continue
			}
			segment := t.branchSegment("", item.id)
			sidx = t.graph.connectNewSegment(item.instruction.segmentIdx(), item.instruction.atCommit, segment, 0, item.id)
		}
		t.seen[item.id] = sidx

		// A commit is named once; consume its refs-by-id entry.
		refsAt := t.refsByID[item.id]
		delete(t.refsByID, item.id)

		laterItems, selfGoal, localGoal, err := t.queueRemoteBranches(refsAt, item.id, item.limit)
		if err != nil {
			return false, err
		}
		propagated |= selfGoal

		segment := t.graph.Segment(sidx)
		commitIdx := len(segment.Commits)

		flags := propagated
		if last := segment.LastCommitFlags(); commitIdx > 0 {
			// Flags are additive; something may have dumped more on the
			// segment since this item was queued.
			flags |= last
		}
		var refs []string
		for _, ref := range refsAt {
			if ref != segment.RefName {
				refs = append(refs, ref)
			}
		}
		segment.Commits = append(segment.Commits, CommitInfo{
			ID:      item.id,
			Parents: commit.ParentHashes,
			Flags:   flags,
			Refs:    refs,
		})

		item.limit.spend()
		if t.queueParents(commit.ParentHashes, propagated, sidx, commitIdx, item.limit.additionalGoal(localGoal)) {
			return true, nil
		}

		for _, later := range laterItems {
			if t.next.pushBack(later) {
				return true, nil
			}
		}

		t.pruneIntegratedTips()
	}
}

// queueParents enqueues a commit's parents: the first continues the current
// segment, every further parent starts a new child segment at the fork
// commit. Returns true when the hard limit was breached.
func (t *traversal) queueParents(parents []plumbing.Hash, flags CommitFlags, sidx SegmentID, commitIdx int, parentLimit limit) bool {
	if parentLimit.exhausted() {
		return false
	}
	for i, parent := range parents {
		instr := instruction{kind: collectCommit, segment: sidx}
		if i > 0 {
			instr = instruction{kind: connectNewSegment, segment: sidx, atCommit: commitIdx}
		}
		if t.next.pushBack(queueItem{id: parent, flags: flags, instruction: instr, limit: parentLimit}) {
			return true
		}
	}
	return false
}

// queueRemoteBranches turns local branches found at a commit into remote
// traversal lanes. The commit itself becomes a goal so the remote side can
// find the local side, and the local lane receives a goal keyed to the remote
// tip so it stays alive long enough for the reverse.
func (t *traversal) queueRemoteBranches(refsAt []string, id plumbing.Hash, laneLimit limit) (later []queueItem, selfGoal, localGoal CommitFlags, err error) {
	for _, ref := range refsAt {
		if !isLocalBranchRef(ref) {
			continue
		}
		remoteRef, ok := t.tracked[ref]
		if !ok {
			continue
		}
		if _, isTarget := t.targetRefs[remoteRef]; isTarget {
			continue
		}
		if extractRemoteName(remoteRef, t.symbolicRemotes) == "" {
			continue
		}
		remoteTip, ok := t.view.resolveRef(plumbing.ReferenceName(remoteRef))
		if !ok {
			continue
		}
		if remoteTip == id || t.next.isQueued(remoteTip) {
			continue
		}
		if _, alreadySeen := t.seen[remoteTip]; alreadySeen {
			continue
		}

		goalHere, err := t.goals.FlagFor(id)
		if err != nil {
			return nil, 0, 0, err
		}
		selfGoal |= goalHere
		goalRemote, err := t.goals.FlagFor(remoteTip)
		if err != nil {
			return nil, 0, 0, err
		}
		localGoal |= goalRemote

		segment := &Segment{RefName: remoteRef, Sibling: NoSegment}
		sidx := t.graph.insertSegment(segment)
		remoteLimit := laneLimit
		remoteLimit.goals = goalHere
		later = append(later, queueItem{
			id:          remoteTip,
			flags:       goalRemote,
			instruction: instruction{kind: collectCommit, segment: sidx},
			limit:       remoteLimit.withoutAllowance(),
		})
	}
	return later, selfGoal, localGoal, nil
}

// maybeSplitAtBranch starts a new, named child segment when another ref
// names the commit about to join a non-empty segment.
func (t *traversal) maybeSplitAtBranch(sidx SegmentID, id plumbing.Hash) SegmentID {
	segment := t.graph.Segment(sidx)
	if len(segment.Commits) == 0 {
		return sidx
	}
	refsAt := t.refsByID[id]
	if len(refsAt) == 0 {
		return sidx
	}
	name := disambiguatedName(refsAt)
	child := &Segment{RefName: name, Sibling: NoSegment}
	return t.graph.connectNewSegment(sidx, len(segment.Commits)-1, child, 0, id)
}

// splitOccupiedSegment handles a re-encountered commit: either the incoming
// edge lands on a segment's first commit and only flags are merged, or the
// host segment is split at the commit into an upper parent and a lower child
// segment, rewiring edges.
func (t *traversal) splitOccupiedSegment(id plumbing.Hash, flags CommitFlags, srcSidx SegmentID, srcCommit int) {
	hostIdx := t.seen[id]
	host := t.graph.Segment(hostIdx)
	ci := -1
	for i := range host.Commits {
		if host.Commits[i].ID == id {
			ci = i
			break
		}
	}
	if ci < 0 {
		return
	}

	if srcCommit < 0 {
		srcCommit = noCommit
	}

	if ci == 0 {
		t.graph.connectSegments(srcSidx, srcCommit, hostIdx, 0)
		t.propagateFlags(hostIdx, 0, flags)
		return
	}

	// Split host at ci: commits above stay, the commit and everything below
	// move into a new anonymous child.
	child := &Segment{RefName: "", Sibling: NoSegment}
	childIdx := t.graph.insertSegment(child)
	child = t.graph.Segment(childIdx)
	child.Commits = append(child.Commits, host.Commits[ci:]...)
	host.Commits = host.Commits[:ci]

	for i := range child.Commits {
		t.seen[child.Commits[i].ID] = childIdx
	}
	for i := range t.graph.edges {
		edge := &t.graph.edges[i]
		if edge.Src == hostIdx && edge.SrcCommit != noCommit && edge.SrcCommit >= ci {
			edge.Src = childIdx
			edge.SrcCommit -= ci
		}
		if edge.Dst == hostIdx && edge.DstCommit != noCommit && edge.DstCommit >= ci {
			edge.Dst = childIdx
			edge.DstCommit -= ci
		}
	}
	t.graph.connectSegments(hostIdx, ci-1, childIdx, 0)
	t.graph.connectSegments(srcSidx, srcCommit, childIdx, 0)
	t.propagateFlags(childIdx, 0, flags)
}

// propagateFlags ORs flags into a segment from the given commit on and into
// every segment reachable below it. Flags are monotonic, so propagation can
// stop as soon as nothing new would be added.
func (t *traversal) propagateFlags(sidx SegmentID, fromIdx int, flags CommitFlags) {
	if flags == 0 {
		return
	}
	segment := t.graph.Segment(sidx)
	changed := false
	for i := fromIdx; i < len(segment.Commits); i++ {
		if !segment.Commits[i].Flags.Has(flags) {
			segment.Commits[i].Flags |= flags
			changed = true
		}
	}
	if !changed && len(segment.Commits) > fromIdx {
		return
	}
	for _, edge := range t.graph.OutgoingEdges(sidx) {
		if edge.SrcCommit != noCommit && edge.SrcCommit < fromIdx {
			continue
		}
		from := edge.DstCommit
		if from == noCommit {
			from = 0
		}
		t.propagateFlags(edge.Dst, from, flags)
	}
}

// pruneIntegratedTips drops queued tips that can only prove what's already
// known: integrated commits with no goals left to find.
func (t *traversal) pruneIntegratedTips() {
	t.next.retain(func(item queueItem) bool {
		return !(item.flags.Has(FlagIntegrated) && item.limit.goals == 0)
	})
}
