package erl

// an opaque unique string. Don't rely on structure format or even size for
// that matter.
type Ref string

// A Runnable is the behaviour a Process executes. Receive is invoked once;
// the process is alive until it returns. Messages arrive on [inbox]; the
// returned error becomes the process exit reason (nil is Normal).
type Runnable interface {
	Receive(self PID, inbox <-chan any) error
}

type ProcFlag string

var TrapExit ProcFlag = "trap_exit"
