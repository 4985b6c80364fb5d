package erl

import "github.com/uberbrodt/parent-go/erl/exitreason"

// ExitMsg is delivered to a Runnable that is trapping exits when a linked
// process exits or another process calls [Exit] on it. Link reports whether
// the signal came from a link rather than an explicit Exit call.
type ExitMsg struct {
	Proc   PID
	Reason *exitreason.S
	Link   bool
}

// DownMsg is delivered to a monitoring process when the monitored process
// exits. Ref matches the value returned by [Monitor] or [SpawnMonitor].
type DownMsg struct {
	Proc   PID
	Ref    Ref
	Reason *exitreason.S
}

func exitMsgFromSignal(sig exitSignal) ExitMsg {
	return ExitMsg{Proc: sig.sender, Reason: sig.reason, Link: sig.link}
}

func downMsgFromSignal(sig downSignal) DownMsg {
	return DownMsg{Proc: sig.proc, Ref: sig.ref, Reason: sig.reason}
}
