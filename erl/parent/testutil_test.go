package parent

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/uberbrodt/parent-go/chronos"
	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/exitreason"
)

// ownerCmd executes a closure on the owner task and replies with its result,
// so tests can drive the core from the goroutine that owns the state.
type ownerCmd struct {
	fn    func(p *Parent) any
	reply chan any
}

// ownerEvent is the outcome of one HandleMessage call on the owner.
type ownerEvent struct {
	res HandleResult
	err error
	// children is NumChildren taken right after the call, before the owner
	// handles anything else in its mailbox.
	children int
}

type testOwnerProc struct {
	t      *testing.T
	opts   []Opt
	ready  chan error
	events chan ownerEvent
}

func (o *testOwnerProc) Receive(self erl.PID, inbox <-chan any) error {
	p, err := Initialize(self, o.opts...)
	o.ready <- err
	if err != nil {
		return exitreason.Wrap(err)
	}
	defer p.Release()

	for anymsg := range inbox {
		switch msg := anymsg.(type) {
		case ownerCmd:
			msg.reply <- msg.fn(p)
		default:
			// the stoppers the parent spawns are linked to the owner, so
			// their clean exits land here too; don't report those as events.
			suppress := false
			if m, ok := anymsg.(erl.ExitMsg); ok {
				if _, tracked := p.st.childByPID(m.Proc); !tracked && m.Link && exitreason.IsNormal(m.Reason) {
					suppress = true
				}
			}
			res, err := p.HandleMessage(msg)
			if !suppress {
				o.events <- ownerEvent{res: res, err: err, children: p.NumChildren()}
			}
			if err != nil {
				return exitreason.Wrap(err)
			}
		}
	}
	return exitreason.Normal
}

type testOwner struct {
	t      *testing.T
	pid    erl.PID
	events chan ownerEvent
}

// startOwner spawns a process that initializes a Parent and routes every
// non-command message through HandleMessage, reporting outcomes on events.
func startOwner(t *testing.T, opts ...Opt) *testOwner {
	t.Helper()
	proc := &testOwnerProc{
		t:      t,
		opts:   opts,
		ready:  make(chan error, 1),
		events: make(chan ownerEvent, 50),
	}
	pid := erl.Spawn(proc)
	t.Cleanup(func() {
		erl.Exit(erl.RootPID(), pid, exitreason.Kill)
	})

	select {
	case err := <-proc.ready:
		assert.NilError(t, err)
	case <-time.After(chronos.Dur("5s")):
		t.Fatal("test owner did not initialize")
	}
	return &testOwner{t: t, pid: pid, events: proc.events}
}

// run executes [fn] on the owner task and returns its result.
func (o *testOwner) run(fn func(p *Parent) any) any {
	o.t.Helper()
	reply := make(chan any, 1)
	erl.Send(o.pid, ownerCmd{fn: fn, reply: reply})
	select {
	case res := <-reply:
		return res
	case <-time.After(chronos.Dur("5s")):
		o.t.Fatal("timed out waiting on owner command")
		return nil
	}
}

// nextEvent waits for the owner to process one non-command message.
func (o *testOwner) nextEvent() ownerEvent {
	o.t.Helper()
	select {
	case ev := <-o.events:
		return ev
	case <-time.After(chronos.Dur("5s")):
		o.t.Fatal("timed out waiting for owner event")
		return ownerEvent{}
	}
}

// startResult makes StartChild usable inside run closures.
type startResult struct {
	pid erl.PID
	err error
}

func (o *testOwner) startChild(spec any) startResult {
	res := o.run(func(p *Parent) any {
		pid, err := p.StartChild(spec)
		return startResult{pid: pid, err: err}
	})
	return res.(startResult)
}

func (o *testOwner) mustStartChild(spec any) erl.PID {
	o.t.Helper()
	res := o.startChild(spec)
	assert.NilError(o.t, res.err)
	return res.pid
}

func (o *testOwner) children() []ChildRec {
	return o.run(func(p *Parent) any { return p.Children() }).([]ChildRec)
}

func (o *testOwner) numChildren() int {
	return o.run(func(p *Parent) any { return p.NumChildren() }).(int)
}

// crashMsg makes a testChild exit with the given reason.
type crashMsg struct {
	reason *exitreason.S
}

// testChild idles until told to crash.
type testChild struct{}

func (tc *testChild) Receive(self erl.PID, inbox <-chan any) error {
	for anymsg := range inbox {
		if msg, ok := anymsg.(crashMsg); ok {
			return msg.reason
		}
	}
	return exitreason.Normal
}

// childStart returns a StartFun that spawns an idle child linked to the
// owner.
func childStart() StartFun {
	return func(parent erl.PID) (erl.PID, error) {
		return erl.SpawnLink(parent, &testChild{}), nil
	}
}

// hangingChild never exits on its own; it ignores every message.
type hangingChild struct{}

func (hc *hangingChild) Receive(self erl.PID, inbox <-chan any) error {
	for range inbox {
	}
	return exitreason.Normal
}

func crash(t *testing.T, pid erl.PID, reason *exitreason.S) {
	t.Helper()
	erl.Send(pid, crashMsg{reason: reason})
}

func childIDs(children []ChildRec) []string {
	out := make([]string, 0, len(children))
	for _, c := range children {
		out = append(out, c.ID)
	}
	return out
}
