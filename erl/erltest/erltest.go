/*
Package erltest provides a test receiver process with message expectations.

A TestReceiver traps exits and records every message it is sent. Tests
declare expectations against message types plus a [Matcher]; the Matcher
interface is compatible with gomock, so [gomock.Any], [gomock.Eq] and
cmpmock.DiffEq are all valid matchers:

	self, tr := erltest.NewReceiver(t)
	tr.Expect(erl.ExitMsg{}, gomock.Any()).Times(1)
	// ... exercise code that signals self ...
	tr.Wait()
*/
package erltest

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/xid"

	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/exitreason"
)

// A Matcher is a representation of a class of values. This interface is
// compatible with the one gomock uses, so values like gomock.Eq(x) are valid
// matchers for an [Expectation].
type Matcher interface {
	// Matches returns whether x is a match.
	Matches(x any) bool

	// String describes what the matcher matches.
	String() string
}

const anyTimes = -1

// An Expectation pairs a message type with a Matcher and a call-count
// constraint.
type Expectation struct {
	id       string
	msgT     reflect.Type
	matcher  Matcher
	minCalls int
	maxCalls int
	numCalls int
	do       func(msg any)
	mx       sync.Mutex
}

// Times requires the expectation to be matched exactly [n] times.
func (e *Expectation) Times(n int) *Expectation {
	e.mx.Lock()
	defer e.mx.Unlock()
	e.minCalls = n
	e.maxCalls = n
	return e
}

// AnyTimes allows the expectation to be matched zero or more times.
func (e *Expectation) AnyTimes() *Expectation {
	e.mx.Lock()
	defer e.mx.Unlock()
	e.minCalls = 0
	e.maxCalls = anyTimes
	return e
}

// MinTimes requires at least [n] matches; no upper bound.
func (e *Expectation) MinTimes(n int) *Expectation {
	e.mx.Lock()
	defer e.mx.Unlock()
	e.minCalls = n
	e.maxCalls = anyTimes
	return e
}

// CallCount reports how many messages have matched so far.
func (e *Expectation) CallCount() int {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.numCalls
}

// Do runs [fn] with the matched message each time the expectation matches.
func (e *Expectation) Do(fn func(msg any)) *Expectation {
	e.mx.Lock()
	defer e.mx.Unlock()
	e.do = fn
	return e
}

func (e *Expectation) satisfied() bool {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.numCalls >= e.minCalls
}

func (e *Expectation) exhausted() bool {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.maxCalls != anyTimes && e.numCalls >= e.maxCalls
}

func (e *Expectation) record(msg any) func(msg any) {
	e.mx.Lock()
	defer e.mx.Unlock()
	e.numCalls = e.numCalls + 1
	return e.do
}

func (e *Expectation) String() string {
	return fmt.Sprintf("Expect[%s](%v matching %s, called %d, want min %d)",
		e.id, e.msgT, e.matcher.String(), e.numCalls, e.minCalls)
}

type rcvrOpts struct {
	waitTimeout time.Duration
}

type ReceiverOpt func(o rcvrOpts) rcvrOpts

// WaitTimeout bounds [TestReceiver.Wait]. Default 5s.
func WaitTimeout(tout time.Duration) ReceiverOpt {
	return func(o rcvrOpts) rcvrOpts {
		o.waitTimeout = tout
		return o
	}
}

type TestReceiver struct {
	t       *testing.T
	self    erl.PID
	opts    rcvrOpts
	mx      sync.Mutex
	expects []*Expectation
	unmet   []any
}

// NewReceiver spawns a trapping test receiver and returns its PID along with
// the expectation handle. The receiver is stopped in t.Cleanup.
func NewReceiver(t *testing.T, opts ...ReceiverOpt) (erl.PID, *TestReceiver) {
	o := rcvrOpts{waitTimeout: 5 * time.Second}
	for _, opt := range opts {
		o = opt(o)
	}
	tr := &TestReceiver{t: t, opts: o}
	pid := erl.Spawn(&receiverProc{tr: tr})
	erl.ProcessFlag(pid, erl.TrapExit, true)
	tr.self = pid
	t.Cleanup(func() {
		erl.Exit(erl.RootPID(), pid, exitreason.TestExit)
	})
	return pid, tr
}

// Expect registers an expectation for messages with the concrete type of
// [matchTerm] that satisfy [m]. Defaults to exactly one match; chain Times,
// MinTimes, AnyTimes, or Do to adjust.
func (tr *TestReceiver) Expect(matchTerm any, m Matcher) *Expectation {
	e := &Expectation{
		id:       xid.New().String(),
		msgT:     reflect.TypeOf(matchTerm),
		matcher:  m,
		minCalls: 1,
		maxCalls: 1,
	}
	tr.mx.Lock()
	defer tr.mx.Unlock()
	tr.expects = append(tr.expects, e)
	return e
}

func (tr *TestReceiver) deliver(msg any) {
	tr.mx.Lock()
	defer tr.mx.Unlock()
	msgT := reflect.TypeOf(msg)
	for _, e := range tr.expects {
		if e.msgT == msgT && !e.exhausted() && e.matcher.Matches(msg) {
			do := e.record(msg)
			if do != nil {
				// run outside the lock so Do funcs can Expect more messages
				tr.mx.Unlock()
				do(msg)
				tr.mx.Lock()
			}
			return
		}
	}
	tr.unmet = append(tr.unmet, msg)
}

func (tr *TestReceiver) allSatisfied() bool {
	tr.mx.Lock()
	defer tr.mx.Unlock()
	for _, e := range tr.expects {
		if !e.satisfied() {
			return false
		}
	}
	return true
}

// Unmatched returns messages that matched no expectation, for debugging.
func (tr *TestReceiver) Unmatched() []any {
	tr.mx.Lock()
	defer tr.mx.Unlock()
	out := make([]any, len(tr.unmet))
	copy(out, tr.unmet)
	return out
}

// Wait blocks until every expectation has reached its minimum call count, or
// fails the test at the wait timeout.
func (tr *TestReceiver) Wait() {
	tr.t.Helper()
	deadline := time.Now().Add(tr.opts.waitTimeout)
	for {
		if tr.allSatisfied() {
			return
		}
		if time.Now().After(deadline) {
			tr.mx.Lock()
			for _, e := range tr.expects {
				if !e.satisfied() {
					tr.t.Errorf("unsatisfied expectation: %s", e)
				}
			}
			tr.t.Errorf("unmatched messages: %+v", tr.unmet)
			tr.mx.Unlock()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type receiverProc struct {
	tr *TestReceiver
}

func (rp *receiverProc) Receive(self erl.PID, inbox <-chan any) error {
	for anymsg := range inbox {
		if msg, ok := anymsg.(erl.ExitMsg); ok && errors.Is(msg.Reason, exitreason.TestExit) {
			return exitreason.Normal
		}
		rp.tr.deliver(anymsg)
	}
	return exitreason.Normal
}
