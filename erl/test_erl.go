package erl

import (
	"errors"
	"testing"
	"time"

	"github.com/uberbrodt/parent-go/chronos"
	"github.com/uberbrodt/parent-go/erl/exitreason"
)

var testTimeout time.Duration = chronos.Dur("10s")

// NewTestReceiver spawns a trapping process that forwards everything it
// receives onto a buffered channel, so tests can assert on messages with
// [TestReceiver.Loop]. It is stopped in t.Cleanup.
func NewTestReceiver(t *testing.T) (PID, *TestReceiver) {
	c := make(chan any, 50)
	tr := &TestReceiver{c: c, t: t}
	pid := Spawn(tr)

	ProcessFlag(pid, TrapExit, true)
	t.Cleanup(func() {
		Exit(RootPID(), pid, exitreason.TestExit)
	})
	return pid, tr
}

type TestReceiver struct {
	c chan any
	t *testing.T
}

func (tr *TestReceiver) Receive(self PID, inbox <-chan any) error {
	for {
		select {
		case msg, ok := <-inbox:
			if !ok {
				return exitreason.Normal
			}
			switch v := msg.(type) {
			case ExitMsg:
				if errors.Is(v.Reason, exitreason.TestExit) {
					// NOTE: don't log exitmsg, it will cause a panic
					return exitreason.Normal
				}
			}
			tr.t.Logf("TestReceiver got message: %#v", msg)
			tr.c <- msg
		case <-time.After(testTimeout):
			tr.t.Fatal("TestReceiver: test timeout")

			return exitreason.Timeout
		}
	}
}

func (tr *TestReceiver) Receiver() <-chan any {
	return tr.c
}

// Like [TestReceiver.Loop] but returns [exitreason.Timeout] after [tout]
func (tr *TestReceiver) LoopFor(tout time.Duration, handler func(msg any) bool) error {
	for {
		select {
		case msg, ok := <-tr.c:
			tr.t.Logf("Loop got message: %#v", msg)
			if !ok {
				return nil
			}
			if stop := handler(msg); stop {
				return nil
			}

		case <-time.After(tout):
			return exitreason.Timeout
		}
	}
}

// Loop feeds received messages to [handler] until it returns true. Fails the
// test if nothing stops the loop within the test timeout.
func (tr *TestReceiver) Loop(handler func(msg any) bool) bool {
	for {
		select {
		case msg, ok := <-tr.c:
			tr.t.Logf("Loop got message: %#v", msg)
			if !ok {
				return false
			}
			if stop := handler(msg); stop {
				return true
			}

		case <-time.After(testTimeout):
			tr.t.Fatal("TestReceiver.Loop test timeout")

			return false
		}
	}
}
