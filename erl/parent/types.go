package parent

import (
	"fmt"

	"github.com/uberbrodt/parent-go/erl"
)

// Restart defines when a child should be restarted after termination, and
// doubles as the binding strength used to validate BindsTo relationships.
//
// Strength order: [Permanent] > [Transient] > [WithDep] > [Temporary]. A
// child may only bind to children of equal or greater strength; a permanent
// child bound to a temporary one could otherwise outlive its dependency
// silently.
type Restart string

const (
	// Permanent children are always restarted, regardless of exit reason.
	// This is the default.
	Permanent Restart = "permanent"

	// Transient children are restarted unless they exit with reason Normal.
	Transient Restart = "transient"

	// WithDep children are never restarted on their own, but are stopped and
	// restarted together with the children they bind to.
	WithDep Restart = "with_dep"

	// Temporary children are never restarted and are discarded when they
	// exit. They only join a restart set when explicitly included.
	Temporary Restart = "temporary"
)

// strength returns the position in the binding-strength lattice.
func (r Restart) strength() int {
	switch r {
	case Permanent:
		return 3
	case Transient:
		return 2
	case WithDep:
		return 1
	case Temporary:
		return 0
	default:
		return -1
	}
}

func (r Restart) valid() bool {
	return r.strength() >= 0
}

// ShutdownOpt specifies how a child is terminated. The parent sends an exit
// signal and then waits according to these options; only one of BrutalKill,
// Infinity, or Timeout should be meaningfully set, evaluated in that order.
//
// Zero value means "use the default for the child type": 5000ms timeout for
// workers, Infinity for supervisor children.
type ShutdownOpt struct {
	// BrutalKill immediately kills the child with [exitreason.Kill] without
	// waiting for a graceful shutdown.
	BrutalKill bool

	// Timeout is the number of milliseconds to wait for the child to exit
	// after the shutdown signal. If it hasn't exited by then, it is killed.
	Timeout int

	// Infinity waits indefinitely for the child to exit.
	Infinity bool
}

func (s ShutdownOpt) isZero() bool {
	return !s.BrutalKill && !s.Infinity && s.Timeout == 0
}

// ChildType indicates whether a child is a worker or another supervisor.
// Advisory; used by the generic tree-walk queries and to pick the default
// ShutdownOpt.
type ChildType string

const (
	SupervisorChild ChildType = "supervisor"
	WorkerChild     ChildType = "worker"
)

// A Ref identifies a child either by its caller-chosen ID or, for anonymous
// children, by its PID. Refs are comparable and are the keys of
// [StoppedChildren].
type Ref struct {
	id  string
	pid erl.PID
}

// ByID references a child by its registered ID.
func ByID(id string) Ref {
	return Ref{id: id}
}

// ByPID references a child by its runtime handle.
func ByPID(pid erl.PID) Ref {
	return Ref{pid: pid}
}

// ID returns the child id and true if this is an id reference.
func (r Ref) ID() (string, bool) {
	return r.id, r.id != ""
}

// PID returns the pid and true if this is a pid reference.
func (r Ref) PID() (erl.PID, bool) {
	return r.pid, r.id == ""
}

func (r Ref) String() string {
	if r.id != "" {
		return fmt.Sprintf("Ref<%s>", r.id)
	}
	return fmt.Sprintf("Ref<%v>", r.pid)
}

// ChildRec is a snapshot of one live or ignored child, returned by
// [Parent.Children] in startup order.
type ChildRec struct {
	ID   string
	PID  erl.PID
	Meta any
	Spec ChildSpec
}

// ChildInfo is the tree-walk view of a child, equivalent to the tuples
// returned by Erlang's supervisor:which_children/1.
type ChildInfo struct {
	// ID is empty for anonymous children.
	ID      string
	PID     erl.PID
	Type    ChildType
	Modules []string
}

// ChildCount contains counts of children by category, equivalent to
// supervisor:count_children/1.
type ChildCount struct {
	Specs       int
	Active      int
	Supervisors int
	Workers     int
}

// WhichChildrenReq, CountChildrenReq and GetChildSpecReq are the client query
// messages the dispatcher answers synchronously when they arrive wrapped in a
// [genserver.CallRequest]. A parentsrv additionally answers them in
// HandleCall directly.
type (
	WhichChildrenReq struct{}
	CountChildrenReq struct{}
	GetChildSpecReq  struct{ Ref Ref }
)

// childTimeoutMsg is delivered to the owner when a child's lifetime timer
// expires. ref correlates the message with the timer that was armed, so a
// timeout that was cancelled after the message was already in flight is
// recognized as stale and dropped.
type childTimeoutMsg struct {
	pid erl.PID
	ref erl.Ref
}

// resumeRestartMsg is the deferred-retry message the restart engine posts to
// the owner's own mailbox after a partial restart failure. Going through the
// mailbox lets other pending events drain before the retry runs.
type resumeRestartMsg struct {
	stopped StoppedChildren
}

// HandleResult is the outcome of [Parent.HandleMessage].
type HandleResult struct {
	// Unhandled reports that the message was not a parent message; the owner
	// should process it itself.
	Unhandled bool

	// Stopped is non-empty when children were stopped without an automatic
	// restart. The owner may return them later via [Parent.ReturnChildren].
	Stopped StoppedChildren
}
