/*
Package gensrv provides a registration-based GenServer implementation.

Rather than implementing the full [genserver.GenServer] interface, register
handlers for specific message types with functional options:

	pid, err := gensrv.StartLink[MyState](self, 0,
		gensrv.RegisterInit(func(self erl.PID, start int) (MyState, any, error) {
			return MyState{Count: start}, nil, nil
		}),
		gensrv.RegisterCall(GetCount{}, func(self erl.PID, req GetCount, from genserver.From, state MyState) (genserver.CallResult[MyState], error) {
			return genserver.CallResult[MyState]{Msg: state.Count, State: state}, nil
		}),
	)

Panics in registered handlers are caught at the Process level and converted
to Exception exit reasons; no defer/recover is needed in handlers.
*/
package gensrv

import (
	"reflect"
	"time"

	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/genserver"
)

func (o *config[State]) SetName(name erl.Name) {
	o.name = name
}

func (o *config[State]) GetName() erl.Name {
	return o.name
}

func (o *config[State]) SetStartTimeout(tout time.Duration) {
	o.startTimeout = tout
}

func (o *config[State]) GetStartTimeout() time.Duration {
	return o.startTimeout
}

// GenSrvOpt configures a gensrv instance by modifying its handler registry.
type GenSrvOpt[State any] func(c *config[State])

// Start creates and initializes a new GenServer process. The [arg] parameter
// is passed to the registered init function.
func Start[State any](self erl.PID, arg any, opts ...GenSrvOpt[State]) (erl.PID, error) {
	conf := doConf[State](opts...)

	return genserver.Start[State](self, &CB[State]{conf: conf}, arg, genserver.InheritOpts(conf))
}

// StartLink creates and initializes a new GenServer process linked to the
// calling process.
func StartLink[State any](self erl.PID, arg any, opts ...GenSrvOpt[State]) (erl.PID, error) {
	conf := doConf[State](opts...)
	return genserver.StartLink[State](self, &CB[State]{conf: conf}, arg, genserver.InheritOpts(conf))
}

// StartMonitor creates and initializes a new GenServer process while
// monitoring it.
func StartMonitor[State any](self erl.PID, arg any, opts ...GenSrvOpt[State]) (erl.PID, erl.Ref, error) {
	conf := doConf[State](opts...)
	return genserver.StartMonitor[State](self, &CB[State]{conf: conf}, arg, genserver.InheritOpts(conf))
}

func doConf[State any](opts ...GenSrvOpt[State]) *config[State] {
	conf := &config[State]{
		castFuns:     make(map[reflect.Type]func(self erl.PID, arg any, state State) (newState State, continu any, err error)),
		callFuns:     make(map[reflect.Type]func(self erl.PID, request any, from genserver.From, state State) (genserver.CallResult[State], error)),
		infoFuns:     make(map[reflect.Type]func(self erl.PID, arg any, state State) (newState State, continu any, err error)),
		continueFuns: make(map[reflect.Type]func(self erl.PID, contTerm any, state State) (State, any, error)),
	}

	for _, opt := range opts {
		opt(conf)
	}
	return conf
}

// SetName registers the process under [name] so it can be found with
// [erl.WhereIs].
func SetName[State any](name erl.Name) GenSrvOpt[State] {
	return func(c *config[State]) {
		c.name = name
	}
}

// SetStartTimeout bounds the initialization phase; the process is killed if
// init takes longer.
func SetStartTimeout[State any](tout time.Duration) GenSrvOpt[State] {
	return func(c *config[State]) {
		c.startTimeout = tout
	}
}

// RegisterInit registers the function called when the server starts. It
// returns the initial state, an optional continuation term, and any error.
// Returning [exitreason.Ignore] makes the server exit with reason Normal, and
// the start call returns [exitreason.Ignore].
func RegisterInit[State any, Arg any](init func(self erl.PID, arg Arg) (State, any, error)) GenSrvOpt[State] {
	return func(c *config[State]) {
		c.initFun = func(self erl.PID, a any) (genserver.InitResult[State], error) {
			msg := a.(Arg)
			s, cont, err := init(self, msg)
			return genserver.InitResult[State]{Continue: cont, State: s}, err
		}
	}
}

// RegisterCast registers a handler for asynchronous messages matching the
// type of [matchType].
func RegisterCast[State any, Msg any](matchType any, fn func(self erl.PID, a Msg, state State) (newState State, continu any, err error)) GenSrvOpt[State] {
	return func(c *config[State]) {
		termT := reflect.TypeOf(matchType)
		c.castFuns[termT] = func(self erl.PID, m any, s State) (newState State, continu any, err error) {
			msg := m.(Msg)
			return fn(self, msg, s)
		}
	}
}

// RegisterInfo registers a handler for raw process messages matching the type
// of [matchType], such as [erl.ExitMsg] or [erl.DownMsg].
func RegisterInfo[State any, Msg any](matchType any, fn func(self erl.PID, a Msg, state State) (newState State, continu any, err error)) GenSrvOpt[State] {
	return func(c *config[State]) {
		termT := reflect.TypeOf(matchType)
		c.infoFuns[termT] = func(self erl.PID, m any, s State) (newState State, continu any, err error) {
			msg := m.(Msg)
			return fn(self, msg, s)
		}
	}
}

// RegisterCall registers a handler for synchronous requests matching the type
// of [matchType]. The handler's CallResult is sent back to the caller.
func RegisterCall[State any, Msg any](matchType any, fn func(self erl.PID, request Msg, from genserver.From, state State) (result genserver.CallResult[State], err error)) GenSrvOpt[State] {
	return func(c *config[State]) {
		termT := reflect.TypeOf(matchType)
		c.callFuns[termT] = func(self erl.PID, m any, f genserver.From, s State) (result genserver.CallResult[State], err error) {
			msg := m.(Msg)
			return fn(self, msg, f, s)
		}
	}
}

// RegisterContinue registers a handler for continuation terms produced by
// other handlers. Continuations can chain.
func RegisterContinue[State any, Msg any](matchType any, fn func(self erl.PID, cont Msg, state State) (newState State, continu any, err error)) GenSrvOpt[State] {
	return func(c *config[State]) {
		termT := reflect.TypeOf(matchType)
		c.continueFuns[termT] = func(self erl.PID, m any, s State) (State, any, error) {
			msg := m.(Msg)
			return fn(self, msg, s)
		}
	}
}

// RegisterTerminate registers a cleanup handler run when the server is about
// to terminate. It cannot prevent termination.
func RegisterTerminate[State any](terminate func(self erl.PID, reason error, state State)) GenSrvOpt[State] {
	return func(c *config[State]) {
		c.terminateFun = terminate
	}
}
