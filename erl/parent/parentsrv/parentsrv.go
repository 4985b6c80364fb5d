/*
Package parentsrv wraps the parent core in a genserver, the way a process
that traps its children's exits is normally written.

The callback's Init declares the parent options and the initial children;
every info message is offered to the core first, and only messages the core
reports as unhandled reach the callback. The server answers the generic
supervision tree-walk queries in HandleCall, so to outside tools a parentsrv
looks like a supervisor.
*/
package parentsrv

import (
	"time"

	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/exitreason"
	"github.com/uberbrodt/parent-go/erl/genserver"
	"github.com/uberbrodt/parent-go/erl/parent"
	"github.com/uberbrodt/parent-go/erl/timeout"
)

// InitResult configures the server from the callback's Init.
type InitResult struct {
	// ParentOpts configure the core (restart ceilings, registry).
	ParentOpts []parent.Opt

	// ChildSpecs are started in order, atomically: the first failure stops
	// the already-started prefix and fails the server start. Each entry
	// accepts the shapes of parent.NewChildSpecFrom.
	ChildSpecs []any

	// UserState is the callback's own state, reachable through [Ctx].
	UserState any

	// Ignore cancels the start: the server exits with reason Normal and
	// StartLink returns exitreason.Ignore.
	Ignore bool
}

// Ctx hands callbacks the core and the callback's own mutable state.
type Ctx struct {
	st *srvState
}

func (c Ctx) Parent() *parent.Parent {
	return c.st.parent
}

func (c Ctx) User() any {
	return c.st.user
}

func (c Ctx) PutUser(u any) {
	c.st.user = u
}

// ParentServer is the callback interface. All methods run on the owner task.
type ParentServer interface {
	Init(self erl.PID, args any) InitResult

	// HandleCall receives calls that are not tree-walk queries.
	HandleCall(self erl.PID, request any, from genserver.From, ctx Ctx) (reply any, err error)

	HandleCast(self erl.PID, request any, ctx Ctx) error

	// HandleInfo receives only messages the parent core reported unhandled.
	HandleInfo(self erl.PID, msg any, ctx Ctx) error

	// HandleStoppedChildren is invoked when children stopped without an
	// automatic restart; the set can be handed back via
	// ctx.Parent().ReturnChildren.
	HandleStoppedChildren(self erl.PID, stopped parent.StoppedChildren, ctx Ctx) error

	Terminate(self erl.PID, reason error, ctx Ctx)
}

type srvState struct {
	parent *parent.Parent
	cb     ParentServer
	user   any
}

type linkOpts struct {
	name erl.Name
}

type StartOpt func(o linkOpts) linkOpts

// SetName registers the server under [name].
func SetName(name erl.Name) StartOpt {
	return func(o linkOpts) linkOpts {
		o.name = name
		return o
	}
}

// StartLink starts a parentsrv linked to [self]. The start timeout is
// infinite: a parent may legitimately take a long time to start its children,
// and its shutdown grace period is likewise unbounded.
func StartLink(self erl.PID, callback ParentServer, args any, opts ...StartOpt) (erl.PID, error) {
	o := linkOpts{}
	for _, opt := range opts {
		o = opt(o)
	}

	gsOpts := make([]genserver.StartOpt, 0)
	if o.name != "" {
		gsOpts = append(gsOpts, genserver.SetName(o.name))
	}
	gsOpts = append(gsOpts, genserver.SetStartTimeout(timeout.Infinity))

	return genserver.StartLink[*srvState](self, srv{callback: callback}, args, gsOpts...)
}

// WhichChildren queries a running parentsrv (or any process answering the
// tree-walk protocol) for its children.
func WhichChildren(self erl.PID, server erl.Dest, tout time.Duration) ([]parent.ChildInfo, error) {
	reply, err := genserver.Call(self, server, parent.WhichChildrenReq{}, tout)
	if err != nil {
		return nil, err
	}
	return reply.([]parent.ChildInfo), nil
}

func CountChildren(self erl.PID, server erl.Dest, tout time.Duration) (parent.ChildCount, error) {
	reply, err := genserver.Call(self, server, parent.CountChildrenReq{}, tout)
	if err != nil {
		return parent.ChildCount{}, err
	}
	return reply.(parent.ChildCount), nil
}

func GetChildSpec(self erl.PID, server erl.Dest, ref parent.Ref, tout time.Duration) (parent.ChildSpec, error) {
	reply, err := genserver.Call(self, server, parent.GetChildSpecReq{Ref: ref}, tout)
	if err != nil {
		return parent.ChildSpec{}, err
	}
	switch r := reply.(type) {
	case parent.ChildSpec:
		return r, nil
	case error:
		return parent.ChildSpec{}, r
	default:
		return parent.ChildSpec{}, parent.ErrNotFound
	}
}

var _ genserver.GenServer[*srvState] = srv{}

type srv struct {
	callback ParentServer
}

func (s srv) Init(self erl.PID, args any) (genserver.InitResult[*srvState], error) {
	initResult := s.callback.Init(self, args)
	if initResult.Ignore {
		return genserver.InitResult[*srvState]{}, exitreason.Ignore
	}

	// Initialize enables exit trapping for the owner.
	p, err := parent.Initialize(self, initResult.ParentOpts...)
	if err != nil {
		return genserver.InitResult[*srvState]{}, exitreason.Shutdown(err)
	}

	st := &srvState{parent: p, cb: s.callback, user: initResult.UserState}

	if err := p.StartAllChildren(initResult.ChildSpecs...); err != nil {
		p.Release()
		return genserver.InitResult[*srvState]{}, exitreason.Wrap(err)
	}

	return genserver.InitResult[*srvState]{State: st}, nil
}

func (s srv) HandleCall(self erl.PID, request any, from genserver.From, st *srvState) (genserver.CallResult[*srvState], error) {
	switch req := request.(type) {
	case parent.WhichChildrenReq:
		return genserver.CallResult[*srvState]{Msg: st.parent.WhichChildren(), State: st}, nil
	case parent.CountChildrenReq:
		return genserver.CallResult[*srvState]{Msg: st.parent.CountChildren(), State: st}, nil
	case parent.GetChildSpecReq:
		spec, err := st.parent.GetChildSpec(req.Ref)
		if err != nil {
			return genserver.CallResult[*srvState]{Msg: err, State: st}, nil
		}
		return genserver.CallResult[*srvState]{Msg: spec, State: st}, nil
	default:
		reply, err := st.cb.HandleCall(self, request, from, Ctx{st: st})
		return genserver.CallResult[*srvState]{Msg: reply, State: st}, err
	}
}

func (s srv) HandleCast(self erl.PID, request any, st *srvState) (genserver.CastResult[*srvState], error) {
	err := st.cb.HandleCast(self, request, Ctx{st: st})
	return genserver.CastResult[*srvState]{State: st}, err
}

func (s srv) HandleInfo(self erl.PID, msg any, st *srvState) (genserver.InfoResult[*srvState], error) {
	res, err := st.parent.HandleMessage(msg)
	if err != nil {
		// restart ceiling exceeded; children are already shut down. Exit
		// with the escalation reason.
		return genserver.InfoResult[*srvState]{State: st}, err
	}
	if res.Unhandled {
		return genserver.InfoResult[*srvState]{State: st}, st.cb.HandleInfo(self, msg, Ctx{st: st})
	}
	if res.Stopped.Len() > 0 {
		return genserver.InfoResult[*srvState]{State: st}, st.cb.HandleStoppedChildren(self, res.Stopped, Ctx{st: st})
	}
	return genserver.InfoResult[*srvState]{State: st}, nil
}

func (s srv) HandleContinue(self erl.PID, continuation any, st *srvState) (*srvState, any, error) {
	return st, nil, nil
}

// Terminate completes the reverse-startup-order shutdown of all surviving
// children before the owner exits, so every child exit signal has been
// drained from the mailbox.
func (s srv) Terminate(self erl.PID, reason error, st *srvState) {
	if st == nil {
		return
	}
	st.parent.ShutdownAll(exitreason.SupervisorShutdown)
	st.parent.Release()
	st.cb.Terminate(self, reason, Ctx{st: st})
}
