package gensrv_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/uberbrodt/parent-go/chronos"
	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/exitreason"
	"github.com/uberbrodt/parent-go/erl/genserver"
	"github.com/uberbrodt/parent-go/erl/gensrv"
)

type incr struct {
	By int
}

type getCount struct{}

type notify struct {
	To erl.PID
}

func startCounter(t *testing.T, self erl.PID, start int) erl.PID {
	t.Helper()
	pid, err := gensrv.Start[int](self, start,
		gensrv.RegisterInit(func(self erl.PID, arg int) (int, any, error) {
			return arg, nil, nil
		}),
		gensrv.RegisterCast(incr{}, func(self erl.PID, msg incr, state int) (int, any, error) {
			return state + msg.By, nil, nil
		}),
		gensrv.RegisterCall(getCount{}, func(self erl.PID, req getCount, from genserver.From, state int) (genserver.CallResult[int], error) {
			return genserver.CallResult[int]{Msg: state, State: state}, nil
		}),
		gensrv.RegisterInfo(notify{}, func(self erl.PID, msg notify, state int) (int, any, error) {
			erl.Send(msg.To, state)
			return state, nil, nil
		}),
	)
	assert.NilError(t, err)
	t.Cleanup(func() {
		erl.Exit(erl.RootPID(), pid, exitreason.Kill)
	})
	return pid
}

func TestRegisteredHandlers(t *testing.T) {
	self, tr := erl.NewTestReceiver(t)
	pid := startCounter(t, self, 5)

	assert.NilError(t, genserver.Cast(pid, incr{By: 3}))

	reply, err := genserver.Call(self, pid, getCount{}, chronos.Dur("5s"))
	assert.NilError(t, err)
	assert.Equal(t, reply.(int), 8)

	erl.Send(pid, notify{To: self})
	var got int
	tr.Loop(func(anymsg any) bool {
		if v, ok := anymsg.(int); ok {
			got = v
			return true
		}
		return false
	})
	assert.Equal(t, got, 8)
}

func TestUnhandledCastStopsServer(t *testing.T) {
	self, tr := erl.NewTestReceiver(t)
	pid, err := gensrv.StartLink[int](self, 0,
		gensrv.RegisterInit(func(self erl.PID, arg int) (int, any, error) {
			return arg, nil, nil
		}),
	)
	assert.NilError(t, err)

	assert.NilError(t, genserver.Cast(pid, incr{By: 1}))

	exited := tr.Loop(func(anymsg any) bool {
		if msg, ok := anymsg.(erl.ExitMsg); ok && msg.Proc.Equals(pid) {
			return true
		}
		return false
	})
	assert.Assert(t, exited)
	assert.Assert(t, !erl.IsAlive(pid))
}
