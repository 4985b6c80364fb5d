package parent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/exitreason"
	"github.com/uberbrodt/parent-go/erl/genserver"
	"github.com/uberbrodt/parent-go/erl/timeout"
)

type parentOpts struct {
	maxRestarts int
	maxSeconds  int
	registry    Registry
}

type Opt func(o parentOpts) parentOpts

// SetMaxRestarts configures the parent-wide restart ceiling: more than [max]
// restart events within the MaxSeconds window and the parent gives up.
// Pass [UnlimitedRestarts] to disable. Default 3.
func SetMaxRestarts(max int) Opt {
	return func(o parentOpts) parentOpts {
		o.maxRestarts = max
		return o
	}
}

// SetMaxSeconds configures the parent-wide restart window in seconds.
// Default 5.
func SetMaxSeconds(seconds int) Opt {
	return func(o parentOpts) parentOpts {
		o.maxSeconds = seconds
		return o
	}
}

// SetRegistry enables the discovery index: the parent will notify [r] on
// every registration, removal, and meta update.
func SetRegistry(r Registry) Opt {
	return func(o parentOpts) parentOpts {
		o.registry = r
		return o
	}
}

// Parent is the supervision core for a single owner process. All methods
// must be called from the owner task; there is no internal locking of the
// child state.
type Parent struct {
	self erl.PID
	opts parentOpts
	st   *state
}

var (
	initializedMx sync.Mutex
	initialized   = make(map[erl.PID]struct{})
)

// Initialize creates the parent state for the owner process [self] and
// enables exit trapping, so child deaths materialize as [erl.ExitMsg]
// mailbox messages instead of propagating. Fails with
// [ErrAlreadyInitialized] on a second call for the same owner; call
// [Parent.Release] from the owner's termination path.
func Initialize(self erl.PID, opts ...Opt) (*Parent, error) {
	o := parentOpts{maxRestarts: 3, maxSeconds: 5}
	for _, opt := range opts {
		o = opt(o)
	}

	initializedMx.Lock()
	defer initializedMx.Unlock()
	if _, ok := initialized[self]; ok {
		return nil, ErrAlreadyInitialized
	}
	initialized[self] = struct{}{}

	erl.ProcessFlag(self, erl.TrapExit, true)

	return &Parent{self: self, opts: o, st: newState()}, nil
}

// Release forgets the owner's initialization record. Call when the owner is
// terminating, after [Parent.ShutdownAll].
func (p *Parent) Release() {
	initializedMx.Lock()
	defer initializedMx.Unlock()
	delete(initialized, p.self)
}

// StartChild validates, normalizes and starts one child. [in] accepts the
// shapes of [NewChildSpecFrom]. Returns the new pid, or [erl.UndefinedPID]
// for a child whose start function returned ignore.
func (p *Parent) StartChild(in any) (erl.PID, error) {
	cs, err := p.startOne(in)
	if err != nil {
		return erl.UndefinedPID, err
	}
	if cs == nil {
		// ignored and discarded; nothing was recorded
		return erl.UndefinedPID, nil
	}
	return cs.pid, nil
}

// startOne runs normalize, validate, start, register for one child. Returns
// (nil, nil) for an ignored child that was discarded.
func (p *Parent) startOne(in any) (*childState, error) {
	spec, err := NewChildSpecFrom(in)
	if err != nil {
		return nil, err
	}

	cs := &childState{spec: spec, meta: spec.Meta}
	if err := p.validate(cs); err != nil {
		return nil, err
	}

	if err := p.startChildProc(cs); err != nil {
		return nil, err
	}
	if cs.pid.IsNil() && spec.DiscardIgnored {
		return nil, nil
	}

	cs.startupIndex = p.st.nextIndex
	p.register(cs)
	return cs, nil
}

// StartAllChildren starts [specs] in order, atomically: on the first failure
// the already-started prefix is shut down in reverse order and the error is
// returned. The owner is expected to terminate with it.
func (p *Parent) StartAllChildren(specs ...any) error {
	var started []*childState
	for _, in := range specs {
		cs, err := p.startOne(in)
		if err != nil {
			p.stopChildren(started, exitreason.SupervisorShutdown)
			for _, prev := range started {
				p.st.remove(prev)
			}
			return err
		}
		if cs != nil {
			started = append(started, cs)
		}
	}
	return nil
}

// validate runs the start-time checks in order; first failure wins.
func (p *Parent) validate(cs *childState) error {
	spec := cs.spec

	if spec.ID != "" {
		if existing, ok := p.st.child(ByID(spec.ID)); ok {
			return AlreadyStartedError{PID: existing.pid}
		}
	}

	var missing []Ref
	var forbidden []Ref
	var deps []int
	for _, ref := range spec.BindsTo {
		dep, ok := p.st.child(ref)
		if !ok {
			missing = append(missing, ref)
			continue
		}
		if spec.Restart.strength() > dep.spec.Restart.strength() {
			forbidden = append(forbidden, ref)
			continue
		}
		deps = append(deps, dep.startupIndex)
	}
	if len(missing) > 0 {
		return MissingDepsError{Refs: missing}
	}
	if len(forbidden) > 0 {
		return ForbiddenBindingsError{From: spec.ID, To: forbidden}
	}
	cs.bindsTo = deps

	if spec.ShutdownGroup != "" {
		for _, member := range p.st.inGroup(spec.ShutdownGroup) {
			if member.spec.Restart != spec.Restart {
				return NonUniformGroupError{Group: spec.ShutdownGroup}
			}
		}
	}

	return nil
}

// startChildProc invokes the start function and interprets the outcome.
// Panics in the start function are converted to Exception errors, the same
// way process-level panics are.
func (p *Parent) startChildProc(cs *childState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				err = exitreason.Exception(fmt.Errorf("panic starting child: %v", r))
			} else if !exitreason.IsException(e) {
				err = exitreason.Exception(e)
			} else {
				err = e
			}
		}
	}()

	pid, err := cs.spec.Start(p.self)

	switch {
	case err == nil:
		cs.pid = pid
		return nil
	case errors.Is(err, exitreason.Ignore):
		cs.pid = erl.UndefinedPID
		return nil
	default:
		return err
	}
}

// register records a started (or kept-ignored) child, arms its lifetime
// timer, and notifies the discovery index.
func (p *Parent) register(cs *childState) {
	p.st.register(cs)
	if !cs.pid.IsNil() && cs.spec.Timeout != timeout.Infinity {
		cs.timerID = erl.MakeRef()
		cs.timerRef = erl.SendAfter(p.self, childTimeoutMsg{pid: cs.pid, ref: cs.timerID}, cs.spec.Timeout)
	}
	p.notifyRegister(cs)
}

func (p *Parent) cancelTimer(cs *childState) {
	if !cs.timerRef.IsNil() {
		_ = erl.CancelTimer(cs.timerRef)
		cs.timerRef = erl.TimerRef{}
		// a timeout already in flight is recognized as stale via timerID
		cs.timerID = erl.UndefinedRef
	}
}

// handleChildDown processes an exit signal for a tracked child.
func (p *Parent) handleChildDown(pid erl.PID, reason *exitreason.S) (HandleResult, error) {
	cs, ok := p.st.childByPID(pid)
	if !ok {
		return HandleResult{Unhandled: true}, nil
	}

	p.cancelTimer(cs)
	p.notifyUnregister(cs)

	return p.downCore(cs, reason)
}

// downCore runs the shared tail of child-down handling; the originating
// child is already dead and unregistered from the index.
func (p *Parent) downCore(origin *childState, reason *exitreason.S) (HandleResult, error) {
	popped, _ := p.st.popWithBoundSiblings(origin.ref())

	siblings := make([]*childState, 0, len(popped))
	for _, cs := range popped {
		if cs != origin {
			siblings = append(siblings, cs)
		}
	}
	p.stopChildren(siblings, exitreason.SupervisorShutdown)

	stopped := newStoppedChildren()
	for _, cs := range popped {
		if cs == origin {
			stopped.put(snapshot(cs, reason, false))
		} else {
			stopped.put(snapshot(cs, exitreason.SupervisorShutdown, false))
		}
	}

	if p.shouldAutoRestart(origin.spec.Restart, reason) {
		// on partial failure a deferred retry is queued; nothing to surface
		if _, err := p.doReturnChildren(stopped, false); err != nil {
			return HandleResult{}, err
		}
		return HandleResult{}, nil
	}

	// if the originating child does not auto-restart, its bound siblings do
	// not restart either; they only come back via ReturnChildren.
	return HandleResult{Stopped: stopped}, nil
}

func (p *Parent) shouldAutoRestart(restart Restart, reason *exitreason.S) bool {
	switch restart {
	case Permanent:
		return true
	case Transient:
		return !exitreason.IsNormal(reason)
	default:
		return false
	}
}

// handleChildTimeout kills a child whose lifetime timer expired and
// processes the resulting down event with reason timeout. A non-temporary
// child that timed out is eligible for automatic restart.
func (p *Parent) handleChildTimeout(msg childTimeoutMsg) (HandleResult, error) {
	cs, ok := p.st.childByPID(msg.pid)
	if !ok || cs.timerID != msg.ref {
		// stale: the timer was cancelled after the message was in flight
		return HandleResult{}, nil
	}

	cs.timerRef = erl.TimerRef{}
	cs.timerID = erl.UndefinedRef
	p.notifyUnregister(cs)

	// killed unconditionally, no grace period
	listen := make(chan stopDoneMsg, 1)
	erl.SpawnLink(p.self, &childStopper{
		done:     listen,
		ownerPID: p.self,
		child:    cs.pid,
		shutdown: ShutdownOpt{BrutalKill: true},
		reason:   exitreason.Kill,
	})
	<-listen

	return p.downCore(cs, exitreason.Timeout)
}

type restartOpts struct {
	includeTemporary bool
}

type RestartOpt func(o restartOpts) restartOpts

// IncludeTemporary controls whether temporary siblings join the restart set
// of [Parent.RestartChild] and [Parent.ReturnChildren]. Default true.
func IncludeTemporary(v bool) RestartOpt {
	return func(o restartOpts) restartOpts {
		o.includeTemporary = v
		return o
	}
}

// RestartChild stops [ref] and its bound siblings and restarts them,
// preserving startup order. The returned stopped-set is non-empty if some
// children could not be restarted yet (a deferred retry is queued for them).
func (p *Parent) RestartChild(ref Ref, opts ...RestartOpt) (StoppedChildren, error) {
	o := restartOpts{includeTemporary: true}
	for _, opt := range opts {
		o = opt(o)
	}

	target, ok := p.st.child(ref)
	if !ok {
		return StoppedChildren{}, ErrNotFound
	}

	popped, _ := p.st.popWithBoundSiblings(ref)
	p.stopChildren(popped, exitreason.SupervisorShutdown)

	stopped := newStoppedChildren()
	for _, cs := range popped {
		stopped.put(snapshot(cs, exitreason.SupervisorShutdown, cs == target))
	}

	return p.doReturnChildren(stopped, o.includeTemporary)
}

// ShutdownChild stops [ref] and its bound siblings; descriptors are
// discarded, including bound permanent or transient siblings. The stopped
// set is returned for a possible later [Parent.ReturnChildren].
func (p *Parent) ShutdownChild(ref Ref) (StoppedChildren, error) {
	if _, ok := p.st.child(ref); !ok {
		return StoppedChildren{}, ErrNotFound
	}

	popped, _ := p.st.popWithBoundSiblings(ref)
	p.stopChildren(popped, exitreason.SupervisorShutdown)

	stopped := newStoppedChildren()
	for _, cs := range popped {
		stopped.put(snapshot(cs, exitreason.SupervisorShutdown, false))
	}
	return stopped, nil
}

// ShutdownAll stops every child in reverse startup order and reinitializes
// the state, preserving configuration. A Normal [reason] is promoted to
// SupervisorShutdown so a normal exit never leaks out as a child termination
// reason. Idempotent; safe to call from the owner's termination path.
func (p *Parent) ShutdownAll(reason *exitreason.S) StoppedChildren {
	if reason == nil || exitreason.IsNormal(reason) {
		reason = exitreason.SupervisorShutdown
	}

	all := p.st.all()
	p.stopChildren(all, reason)

	stopped := newStoppedChildren()
	for _, cs := range all {
		stopped.put(snapshot(cs, exitreason.SupervisorShutdown, false))
	}

	p.st = newState()
	return stopped
}

// ReturnChildren hands a previously returned stopped-set back to the restart
// engine. The result is the set of children that could not be restarted yet
// (a deferred retry is queued for them).
func (p *Parent) ReturnChildren(stopped StoppedChildren, opts ...RestartOpt) (StoppedChildren, error) {
	o := restartOpts{includeTemporary: true}
	for _, opt := range opts {
		o = opt(o)
	}
	return p.doReturnChildren(stopped, o.includeTemporary)
}

// UpdateChildMeta applies [fn] to the child's meta and notifies the
// discovery index. Returns the updated meta.
func (p *Parent) UpdateChildMeta(ref Ref, fn func(meta any) any) (any, error) {
	cs, ok := p.st.child(ref)
	if !ok {
		return nil, ErrNotFound
	}
	cs.meta = fn(cs.meta)
	cs.spec.Meta = cs.meta
	p.notifyUpdateMeta(cs)
	return cs.meta, nil
}

// Children lists all children in startup order.
func (p *Parent) Children() []ChildRec {
	all := p.st.all()
	out := make([]ChildRec, 0, len(all))
	for _, cs := range all {
		out = append(out, ChildRec{ID: cs.spec.ID, PID: cs.pid, Meta: cs.meta, Spec: cs.spec})
	}
	return out
}

// ChildID resolves a pid to the child's id; empty for anonymous children.
func (p *Parent) ChildID(pid erl.PID) (string, error) {
	cs, ok := p.st.childByPID(pid)
	if !ok {
		return "", ErrNotFound
	}
	return cs.spec.ID, nil
}

func (p *Parent) ChildPID(id string) (erl.PID, error) {
	cs, ok := p.st.child(ByID(id))
	if !ok {
		return erl.UndefinedPID, ErrNotFound
	}
	return cs.pid, nil
}

func (p *Parent) ChildMeta(ref Ref) (any, error) {
	cs, ok := p.st.child(ref)
	if !ok {
		return nil, ErrNotFound
	}
	return cs.meta, nil
}

func (p *Parent) IsChild(ref Ref) bool {
	_, ok := p.st.child(ref)
	return ok
}

func (p *Parent) NumChildren() int {
	return p.st.numChildren()
}

// WhichChildren answers the generic supervision tree-walk query.
func (p *Parent) WhichChildren() []ChildInfo {
	all := p.st.all()
	out := make([]ChildInfo, 0, len(all))
	for _, cs := range all {
		out = append(out, ChildInfo{ID: cs.spec.ID, PID: cs.pid, Type: cs.spec.Type, Modules: cs.spec.Modules})
	}
	return out
}

func (p *Parent) CountChildren() ChildCount {
	count := ChildCount{}
	for _, cs := range p.st.all() {
		count.Specs++
		if !cs.pid.IsNil() && erl.IsAlive(cs.pid) {
			count.Active++
		}
		if cs.spec.Type == SupervisorChild {
			count.Supervisors++
		} else {
			count.Workers++
		}
	}
	return count
}

func (p *Parent) GetChildSpec(ref Ref) (ChildSpec, error) {
	cs, ok := p.st.child(ref)
	if !ok {
		return ChildSpec{}, ErrNotFound
	}
	return cs.spec, nil
}

// HandleMessage classifies one owner-mailbox message. A non-nil error is the
// escalation path: the restart ceiling was exceeded, all children have been
// shut down, and the owner must terminate with the returned reason.
func (p *Parent) HandleMessage(msg any) (HandleResult, error) {
	switch m := msg.(type) {
	case erl.ExitMsg:
		res, err := p.handleChildDown(m.Proc, m.Reason)
		if err != nil {
			return res, err
		}
		if res.Unhandled && m.Link &&
			(exitreason.IsNormal(m.Reason) || exitreason.IsShutdown(m.Reason) || errors.Is(m.Reason, exitreason.SupervisorShutdown)) {
			// clean link-exits from processes we no longer (or never) tracked
			// are dropped: stoppers and already-stopped children produce
			// them in normal operation.
			return HandleResult{}, nil
		}
		return res, nil
	case childTimeoutMsg:
		return p.handleChildTimeout(m)
	case resumeRestartMsg:
		_, err := p.doReturnChildren(m.stopped, true)
		return HandleResult{}, err
	case genserver.CallRequest:
		return p.handleQuery(m)
	default:
		return HandleResult{Unhandled: true}, nil
	}
}

// handleQuery answers the client queries that arrive as raw CallRequests in
// owners that are not genservers themselves.
func (p *Parent) handleQuery(req genserver.CallRequest) (HandleResult, error) {
	switch q := req.Msg.(type) {
	case WhichChildrenReq:
		genserver.Reply(req.From, p.WhichChildren())
	case CountChildrenReq:
		genserver.Reply(req.From, p.CountChildren())
	case GetChildSpecReq:
		spec, err := p.GetChildSpec(q.Ref)
		if err != nil {
			genserver.Reply(req.From, err)
		} else {
			genserver.Reply(req.From, spec)
		}
	default:
		return HandleResult{Unhandled: true}, nil
	}
	return HandleResult{}, nil
}
