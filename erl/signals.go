package erl

import "github.com/uberbrodt/parent-go/erl/exitreason"

// A Signal is the low level communication method between processes. There are
// 7 signal types: link, unlink, monitor, demonitor, exit, down, and message.
// link/unlink and monitor/demonitor are consumed internally by the process
// loop. Runnables receive messageSignals directly; downSignals and
// exitSignals are converted into [DownMsg] and [ExitMsg] (the latter only if
// the process is trapping exits).
type Signal interface {
	SignalName() string
}

type exitSignal struct {
	// PID of the process that sent the exit
	sender   PID
	receiver PID
	reason   *exitreason.S
	link     bool
}

func (s exitSignal) SignalName() string {
	return "exit"
}

// delivered to a monitoring process when its monitored process has exited.
type downSignal struct {
	proc   PID
	ref    Ref
	reason *exitreason.S
}

func (s downSignal) SignalName() string {
	return "down"
}

type monitorSignal struct {
	ref       Ref
	monitor   PID
	monitored PID
}

func (s monitorSignal) SignalName() string {
	return "monitor"
}

type demonitorSignal struct {
	ref Ref
	// used by the monitored process to make sure the demonitor call is coming
	// from the process that created the monitor in the first place.
	origin PID
}

func (s demonitorSignal) SignalName() string {
	return "demonitor"
}

type linkSignal struct {
	pid PID
}

func (s linkSignal) SignalName() string {
	return "link"
}

type unlinkSignal struct {
	pid PID
}

func (s unlinkSignal) SignalName() string {
	return "unlink"
}

type messageSignal struct {
	term any
}

func (s messageSignal) SignalName() string {
	return "msg"
}
