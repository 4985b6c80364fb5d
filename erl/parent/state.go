package parent

import (
	"time"

	"golang.org/x/exp/slices"

	"github.com/uberbrodt/parent-go/erl"
)

// childState is the authoritative descriptor of one registered child.
type childState struct {
	spec ChildSpec
	// UndefinedPID when the start function returned ignore.
	pid  erl.PID
	meta any
	// assigned at first successful start, preserved across restarts.
	startupIndex int
	timerRef     erl.TimerRef
	// correlates pending childTimeoutMsg with the currently armed timer.
	timerID erl.Ref
	// startup indexes of the BindsTo targets, resolved at registration.
	// Indexes are stable across restarts, unlike pids.
	bindsTo []int
	// per-child restart ring: timestamps of recent restart events.
	restarts []time.Time
}

func (cs *childState) ref() Ref {
	if cs.spec.ID != "" {
		return ByID(cs.spec.ID)
	}
	return ByPID(cs.pid)
}

// state is the in-owner store: descriptors keyed by startup index, with
// id and pid lookup tables. It is only ever touched from the owner task.
type state struct {
	byIndex   map[int]*childState
	byID      map[string]int
	byPID     map[erl.PID]int
	nextIndex int
	// parent-wide restart ring.
	restarts []time.Time
}

func newState() *state {
	return &state{
		byIndex: make(map[int]*childState),
		byID:    make(map[string]int),
		byPID:   make(map[erl.PID]int),
	}
}

// register records [cs] under its startup index. The caller has already
// assigned the index; nextIndex only ever moves forward so indexes stay
// unique even when stopped children are returned.
func (s *state) register(cs *childState) {
	s.byIndex[cs.startupIndex] = cs
	if cs.spec.ID != "" {
		s.byID[cs.spec.ID] = cs.startupIndex
	}
	if !cs.pid.IsNil() {
		s.byPID[cs.pid] = cs.startupIndex
	}
	if cs.startupIndex >= s.nextIndex {
		s.nextIndex = cs.startupIndex + 1
	}
}

func (s *state) remove(cs *childState) {
	delete(s.byIndex, cs.startupIndex)
	if cs.spec.ID != "" {
		delete(s.byID, cs.spec.ID)
	}
	if !cs.pid.IsNil() {
		delete(s.byPID, cs.pid)
	}
}

func (s *state) child(ref Ref) (*childState, bool) {
	if id, ok := ref.ID(); ok {
		idx, ok := s.byID[id]
		if !ok {
			return nil, false
		}
		return s.byIndex[idx], true
	}
	pid, _ := ref.PID()
	idx, ok := s.byPID[pid]
	if !ok {
		return nil, false
	}
	return s.byIndex[idx], true
}

func (s *state) childByPID(pid erl.PID) (*childState, bool) {
	idx, ok := s.byPID[pid]
	if !ok {
		return nil, false
	}
	return s.byIndex[idx], true
}

// all returns every descriptor in ascending startup order.
func (s *state) all() []*childState {
	out := make([]*childState, 0, len(s.byIndex))
	for _, cs := range s.byIndex {
		out = append(out, cs)
	}
	slices.SortFunc(out, func(a, b *childState) int {
		return a.startupIndex - b.startupIndex
	})
	return out
}

func (s *state) numChildren() int {
	return len(s.byIndex)
}

func (s *state) inGroup(group string) []*childState {
	if group == "" {
		return nil
	}
	var out []*childState
	for _, cs := range s.all() {
		if cs.spec.ShutdownGroup == group {
			out = append(out, cs)
		}
	}
	return out
}

// popWithBoundSiblings removes and returns the transitive closure of [ref]
// under the reverse-bindings relation and the shutdown-group relation, in
// ascending startup order. This is the fundamental primitive: any lifecycle
// event that takes one child down must also take its bound siblings and its
// group mates down.
func (s *state) popWithBoundSiblings(ref Ref) ([]*childState, bool) {
	origin, ok := s.child(ref)
	if !ok {
		return nil, false
	}

	taken := map[int]*childState{origin.startupIndex: origin}
	groups := map[string]bool{}
	if origin.spec.ShutdownGroup != "" {
		groups[origin.spec.ShutdownGroup] = true
	}

	for changed := true; changed; {
		changed = false
		for _, cs := range s.byIndex {
			if _, in := taken[cs.startupIndex]; in {
				continue
			}
			pull := false
			if cs.spec.ShutdownGroup != "" && groups[cs.spec.ShutdownGroup] {
				pull = true
			}
			for _, dep := range cs.bindsTo {
				if _, in := taken[dep]; in {
					pull = true
					break
				}
			}
			if pull {
				taken[cs.startupIndex] = cs
				if cs.spec.ShutdownGroup != "" && !groups[cs.spec.ShutdownGroup] {
					groups[cs.spec.ShutdownGroup] = true
				}
				changed = true
			}
		}
	}

	out := make([]*childState, 0, len(taken))
	for _, cs := range taken {
		out = append(out, cs)
	}
	slices.SortFunc(out, func(a, b *childState) int {
		return a.startupIndex - b.startupIndex
	})
	for _, cs := range out {
		s.remove(cs)
	}
	return out, true
}
