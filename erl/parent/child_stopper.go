package parent

import (
	"errors"
	"fmt"
	"time"

	"github.com/uberbrodt/parent-go/chronos"
	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/exitreason"
)

type stopDoneMsg struct {
	// the reason observed in the DownMsg, for mismatch logging only.
	observed *exitreason.S
}

// childStopper performs the synchronous stop protocol for one child:
//
//  1. monitor the child (monitors survive unlinking, unlike link signals)
//  2. unlink it from the owner so no exit-signal lands in the owner mailbox
//  3. deliver the exit signal: Kill for brutal shutdowns, otherwise the
//     caller-supplied reason
//  4. wait for the down-notification up to the shutdown budget (unbounded
//     for Kill and Infinity)
//  5. on budget expiry, deliver a hard kill and wait unconditionally
//
// The owner blocks on the done channel, so stops are serialized one child at
// a time.
type childStopper struct {
	done       chan<- stopDoneMsg
	ownerPID   erl.PID
	child      erl.PID
	shutdown   ShutdownOpt
	reason     *exitreason.S
	monitorRef erl.Ref
}

func (cs *childStopper) Receive(self erl.PID, inbox <-chan any) error {
	cs.monitorRef = erl.Monitor(self, cs.child)
	// unlink the owner so it doesn't get an ExitMsg for a stop it initiated
	erl.Unlink(cs.ownerPID, cs.child)

	switch shutdown := cs.shutdown; {
	case shutdown.BrutalKill:
		erl.Exit(self, cs.child, exitreason.Kill)
		cs.awaitDown(self, inbox, exitreason.Kill)
	case shutdown.Infinity:
		erl.Exit(self, cs.child, cs.reason)
		cs.awaitDown(self, inbox, cs.reason)
	default:
		erl.Exit(self, cs.child, cs.reason)
		if !cs.awaitDownFor(self, inbox, cs.reason, chronos.Dur(fmt.Sprintf("%dms", shutdown.Timeout))) {
			erl.Exit(self, cs.child, exitreason.Kill)
			cs.awaitDown(self, inbox, exitreason.Kill)
		}
	}
	return exitreason.Normal
}

// awaitDown blocks until the monitored child goes down.
func (cs *childStopper) awaitDown(self erl.PID, inbox <-chan any, sent *exitreason.S) {
	for anyMsg := range inbox {
		if cs.handleMsg(self, anyMsg, sent) {
			return
		}
	}
}

// awaitDownFor is like awaitDown but gives up after [tout], returning false.
func (cs *childStopper) awaitDownFor(self erl.PID, inbox <-chan any, sent *exitreason.S, tout time.Duration) bool {
	for {
		select {
		case anyMsg, ok := <-inbox:
			if !ok {
				return true
			}
			if cs.handleMsg(self, anyMsg, sent) {
				return true
			}
		case <-time.After(tout):
			return false
		}
	}
}

func (cs *childStopper) handleMsg(self erl.PID, anyMsg any, sent *exitreason.S) bool {
	switch msg := anyMsg.(type) {
	case erl.DownMsg:
		if msg.Ref != cs.monitorRef {
			return false
		}
		// a down-reason that doesn't match the signal we sent is logged but
		// does not alter control flow.
		if !errors.Is(msg.Reason, sent) && !errors.Is(msg.Reason, exitreason.NoProc) {
			erl.DebugPrintf("childStopper[%v]: child %v went down with %v after signal %v", self, cs.child, msg.Reason, sent)
		}
		cs.done <- stopDoneMsg{observed: msg.Reason}
		return true
	default:
		erl.DebugPrintf("childStopper[%v]: got a message that wasn't erl.DownMsg: %+v", self, msg)
		return false
	}
}

// stopChildProc runs the stop protocol for one live child and blocks until it
// is down. Ignored children (undefined pid) have nothing to stop.
func (p *Parent) stopChildProc(cs *childState, reason *exitreason.S) {
	p.cancelTimer(cs)

	if cs.pid.IsNil() || !erl.IsAlive(cs.pid) {
		return
	}

	listen := make(chan stopDoneMsg, 1)
	erl.SpawnLink(p.self, &childStopper{
		done:     listen,
		ownerPID: p.self,
		child:    cs.pid,
		shutdown: cs.spec.Shutdown,
		reason:   reason,
	})
	<-listen
}

// stopChildren stops a popped set in descending startup order, one at a
// time.
func (p *Parent) stopChildren(set []*childState, reason *exitreason.S) {
	for i := len(set) - 1; i >= 0; i-- {
		cs := set[i]
		p.notifyUnregister(cs)
		p.stopChildProc(cs, reason)
	}
}
