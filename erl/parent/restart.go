package parent

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"

	"github.com/uberbrodt/parent-go/chronos"
	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/exitreason"
)

// addRestart appends [now] to a restart ring and reports whether the count
// inside the sliding window [now - maxSeconds, now] exceeds maxRestarts.
// Entries outside the window are trimmed.
func addRestart(ring []time.Time, now time.Time, maxRestarts int, maxSeconds int) ([]time.Time, bool) {
	ring = append(ring, now)
	cutoff := now.Add(-time.Duration(maxSeconds) * time.Second)

	trim := 0
	count := 0
	for idx, r := range ring {
		if r.After(cutoff) {
			count++
		} else {
			trim = idx + 1
		}
	}
	ring = slices.Delete(ring, 0, trim)

	if maxRestarts == UnlimitedRestarts {
		return ring, false
	}
	return ring, count > maxRestarts
}

// doReturnChildren is the restart engine: it charges one restart
// event against the parent-wide ring and every stopped descriptor's
// per-child ring, filters temporaries, and re-spawns the set in ascending
// startup order, preserving each child's original startup index.
//
// On a mid-sequence start failure the remainder is abandoned, restarted
// children bound to a still-stopped sibling are stopped again, and a
// deferred resumeRestart message is posted to the owner's own mailbox. Each
// retry consumes another restart event, so a child that can never start
// eventually trips the intensity ceiling and the parent gives up.
func (p *Parent) doReturnChildren(stopped StoppedChildren, includeTemporary bool) (StoppedChildren, error) {
	if stopped.Len() == 0 {
		return newStoppedChildren(), nil
	}

	now := chronos.Now("")

	var exceeded bool
	p.st.restarts, exceeded = addRestart(p.st.restarts, now, p.opts.maxRestarts, p.opts.maxSeconds)
	if exceeded {
		return StoppedChildren{}, p.giveUp(exitreason.Shutdown(ErrReachedMaxRestartIntensity))
	}

	// charge and filter
	work := make([]StoppedChild, 0, stopped.Len())
	for _, ref := range stopped.Refs() {
		child, _ := stopped.Get(ref)

		child.restarts, exceeded = addRestart(child.restarts, now, child.Spec.MaxRestarts, child.Spec.MaxSeconds)
		if exceeded {
			return StoppedChildren{}, p.giveUp(exitreason.Shutdown(fmt.Errorf("too many restarts of child %v", ref)))
		}

		if child.Spec.Restart == Temporary && !child.forceRestart && !includeTemporary {
			continue
		}
		work = append(work, child)
	}

	slices.SortFunc(work, func(a, b StoppedChild) int {
		return a.startupIndex - b.startupIndex
	})

	for i, child := range work {
		cs := &childState{
			spec:         child.Spec,
			meta:         child.Meta,
			startupIndex: child.startupIndex,
			bindsTo:      child.bindsTo,
			restarts:     child.restarts,
		}

		err := p.restartValidate(cs)
		if err == nil {
			err = p.startChildProc(cs)
		}
		if err == nil {
			if cs.pid.IsNil() && cs.spec.DiscardIgnored {
				continue
			}
			p.register(cs)
			continue
		}

		erl.Logger.Printf("Parent[%v]: failed to restart child %v: %v", p.self, cs.ref(), err)
		return p.abandonRestart(work, i)
	}

	return newStoppedChildren(), nil
}

// restartValidate re-checks bindings against the current state. Dependencies
// restarted earlier in the same sequence are already registered; one that is
// gone entirely fails the start and flows into the partial-failure path.
func (p *Parent) restartValidate(cs *childState) error {
	for _, dep := range cs.bindsTo {
		if _, ok := p.st.byIndex[dep]; !ok {
			return fmt.Errorf("%w: dependency with startup index %d is gone", ErrMissingDeps, dep)
		}
	}
	return nil
}

// abandonRestart implements the partial-failure step: [work] is the sorted
// restart set, [failed] the index of the child whose start failed. Children
// before it restarted successfully; any of them bound (transitively) to a
// still-stopped sibling is stopped again to preserve the binding invariant.
func (p *Parent) abandonRestart(work []StoppedChild, failed int) (StoppedChildren, error) {
	remainder := newStoppedChildren()

	stoppedIdx := map[int]bool{}
	for _, child := range work[failed:] {
		stoppedIdx[child.startupIndex] = true
	}

	// fixpoint: restarted children bound to anything in the stopped set get
	// pulled in too
	pulled := map[int]*childState{}
	for changed := true; changed; {
		changed = false
		for _, child := range work[:failed] {
			cs, ok := p.st.byIndex[child.startupIndex]
			if !ok {
				continue
			}
			if _, in := pulled[cs.startupIndex]; in {
				continue
			}
			for _, dep := range cs.bindsTo {
				if stoppedIdx[dep] {
					pulled[cs.startupIndex] = cs
					stoppedIdx[cs.startupIndex] = true
					changed = true
					break
				}
			}
		}
	}

	rollback := make([]*childState, 0, len(pulled))
	for _, cs := range pulled {
		rollback = append(rollback, cs)
	}
	slices.SortFunc(rollback, func(a, b *childState) int {
		return a.startupIndex - b.startupIndex
	})
	p.stopChildren(rollback, exitreason.SupervisorShutdown)
	for _, cs := range rollback {
		p.st.remove(cs)
	}

	for _, child := range work[failed:] {
		remainder.put(child.ref, child)
	}
	for _, cs := range rollback {
		ref, snap := snapshot(cs, exitreason.SupervisorShutdown, false)
		// keep the original force flag if the child was part of the set
		for _, child := range work[:failed] {
			if child.startupIndex == cs.startupIndex {
				snap.forceRestart = child.forceRestart
				break
			}
		}
		remainder.put(ref, snap)
	}

	// deferred retry: goes to the tail of the owner's mailbox so pending
	// events are processed first.
	erl.Send(p.self, resumeRestartMsg{stopped: remainder})

	return remainder, nil
}

// giveUp is the escalation path: the restart ceiling was exceeded. The
// triggering reason is logged, all surviving children are shut down in
// reverse startup order, and the reason is returned for the owner to exit
// with. This is the only path by which the parent forces its owner down.
func (p *Parent) giveUp(reason error) error {
	erl.Logger.Printf("Parent[%v]: giving up: %v", p.self, reason)
	p.ShutdownAll(exitreason.SupervisorShutdown)
	return reason
}
