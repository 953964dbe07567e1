package graph

import "github.com/go-git/go-git/v5/plumbing"

// instructionKind says how a queued commit joins the graph.
type instructionKind int

const (
	// collectCommit appends the commit to an existing segment
	collectCommit instructionKind = iota
	// connectNewSegment starts a new child segment below a parent
	connectNewSegment
)

// instruction tells the traversal where a popped commit belongs.
type instruction struct {
	kind instructionKind
	// segment is the destination for collectCommit, the parent above for
	// connectNewSegment.
	segment SegmentID
	// atCommit anchors the connecting edge for connectNewSegment.
	atCommit int
}

// segmentIdx is the segment the instruction refers to.
func (i instruction) segmentIdx() SegmentID {
	return i.segment
}

// limit is a lane's traversal budget. The allowance decrements per popped
// commit; reaching zero halts the lane unless unreached goals remain, in
// which case traversal continues with the allowance frozen.
type limit struct {
	// allowance is the number of commits the lane may still traverse;
	// unlimited when the traversal has no hint.
	allowance int
	unlimited bool
	goals     CommitFlags
}

func newLimit(hint int) limit {
	if hint <= 0 {
		return limit{unlimited: true}
	}
	return limit{allowance: hint}
}

// withIndirectGoal registers the goal bit keyed to tip on this lane.
func (l limit) withIndirectGoal(tip plumbing.Hash, goals *Goals) (limit, error) {
	flag, err := goals.FlagFor(tip)
	if err != nil {
		return l, err
	}
	l.goals |= flag
	return l, nil
}

// additionalGoal merges another goal flag into the lane.
func (l limit) additionalGoal(flag CommitFlags) limit {
	l.goals |= flag.Goals()
	return l
}

// withoutAllowance removes the budget: the lane only continues to reach its
// goals.
func (l limit) withoutAllowance() limit {
	l.allowance = 0
	l.unlimited = false
	return l
}

// setButKeepGoal resets the budget to other's while preserving the goal set.
func (l *limit) setButKeepGoal(other limit) {
	l.allowance = other.allowance
	l.unlimited = other.unlimited
}

// spend consumes one commit of budget.
func (l *limit) spend() {
	if !l.unlimited && l.allowance > 0 {
		l.allowance--
	}
}

// discharge drops goals that the given flags satisfy.
func (l *limit) discharge(flags CommitFlags) {
	l.goals &^= flags.Goals()
}

// exhausted reports whether the lane has neither budget nor goals left.
func (l limit) exhausted() bool {
	return !l.unlimited && l.allowance == 0 && l.goals == 0
}

// queueItem is one pending traversal step.
type queueItem struct {
	id          plumbing.Hash
	flags       CommitFlags
	instruction instruction
	limit       limit
}

// queue is the traversal deque. Target-like tips are seeded at the front,
// ordinary heads at the back, making the ordering deterministic. The queue
// counts every push against the optional hard limit.
type queue struct {
	items     []queueItem
	hardLimit int
	pushed    int
}

func newQueue(hardLimit int) *queue {
	return &queue{hardLimit: hardLimit}
}

// pushFront enqueues a high-priority item; returns true when the hard limit
// was breached.
func (q *queue) pushFront(item queueItem) bool {
	q.items = append([]queueItem{item}, q.items...)
	return q.countPush()
}

// pushBack enqueues an ordinary item; returns true when the hard limit was
// breached.
func (q *queue) pushBack(item queueItem) bool {
	q.items = append(q.items, item)
	return q.countPush()
}

func (q *queue) countPush() bool {
	q.pushed++
	return q.hardLimit > 0 && q.pushed > q.hardLimit
}

func (q *queue) popFront() (queueItem, bool) {
	if len(q.items) == 0 {
		return queueItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *queue) len() int {
	return len(q.items)
}

// isQueued reports whether a commit is already pending.
func (q *queue) isQueued(id plumbing.Hash) bool {
	for _, item := range q.items {
		if item.id == id {
			return true
		}
	}
	return false
}

// addGoalTo attaches a goal flag to the pending item for id, so the lane
// popping it later knows it is being looked for.
func (q *queue) addGoalTo(id plumbing.Hash, flag CommitFlags) {
	for i := range q.items {
		if q.items[i].id == id {
			q.items[i].flags |= flag
		}
	}
}

// retain keeps only items for which keep returns true.
func (q *queue) retain(keep func(queueItem) bool) {
	kept := q.items[:0]
	for _, item := range q.items {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	q.items = kept
}
