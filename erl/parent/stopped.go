package parent

import (
	"time"

	"golang.org/x/exp/slices"

	"github.com/uberbrodt/parent-go/erl/exitreason"
)

// StoppedChild is a descriptor snapshot taken at the moment a child was
// stopped. The startup index, meta, and per-child restart ring ride along so
// a later return re-registers the child exactly where it was.
type StoppedChild struct {
	Spec       ChildSpec
	Meta       any
	ExitReason *exitreason.S

	ref          Ref
	startupIndex int
	bindsTo      []int
	restarts     []time.Time
	forceRestart bool
}

// StoppedChildren is a stopped-set: a mapping from child Ref to descriptor
// snapshot, ordered by startup index. It is the currency of
// [Parent.ReturnChildren].
type StoppedChildren struct {
	byRef map[Ref]StoppedChild
	order []Ref
}

func newStoppedChildren() StoppedChildren {
	return StoppedChildren{byRef: make(map[Ref]StoppedChild)}
}

func (sc *StoppedChildren) put(ref Ref, child StoppedChild) {
	if _, ok := sc.byRef[ref]; !ok {
		sc.order = append(sc.order, ref)
	}
	sc.byRef[ref] = child
}

func (sc StoppedChildren) Len() int {
	return len(sc.byRef)
}

// Refs returns the set's references in ascending startup order.
func (sc StoppedChildren) Refs() []Ref {
	out := make([]Ref, len(sc.order))
	copy(out, sc.order)
	slices.SortFunc(out, func(a, b Ref) int {
		return sc.byRef[a].startupIndex - sc.byRef[b].startupIndex
	})
	return out
}

func (sc StoppedChildren) Get(ref Ref) (StoppedChild, bool) {
	c, ok := sc.byRef[ref]
	return c, ok
}

// snapshot converts a popped childState into its stopped-set entry.
func snapshot(cs *childState, reason *exitreason.S, force bool) (Ref, StoppedChild) {
	ref := cs.ref()
	return ref, StoppedChild{
		Spec:         cs.spec,
		Meta:         cs.meta,
		ExitReason:   reason,
		ref:          ref,
		startupIndex: cs.startupIndex,
		bindsTo:      cs.bindsTo,
		restarts:     cs.restarts,
		forceRestart: force,
	}
}
