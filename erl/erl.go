/*
Package erl wraps goroutines in Erlang-style processes: asynchronous message
passing, links, monitors, exit signal trapping and propagation, and automatic
panic recovery. It is the substrate the parent supervision engine runs on.

Correspondence with Erlang primitives:

	spawn/1                 Spawn
	spawn_link/1            SpawnLink
	spawn_monitor/1         SpawnMonitor
	link/1                  Link
	unlink/1                Unlink
	monitor/2               Monitor
	demonitor/1             Demonitor
	!/send                  Send
	exit/2                  Exit
	process_flag/2          ProcessFlag
	is_process_alive/1      IsAlive
	make_ref/0              MakeRef
	send_after/3            SendAfter
*/
package erl

import (
	"time"

	"github.com/rs/xid"

	"github.com/uberbrodt/parent-go/erl/exitreason"
)

type processStatus string

var (
	exiting processStatus = "EXITING"
	exited  processStatus = "EXITED"
	running processStatus = "RUNNING"
)

// Link establishes a bi-directional relationship between two processes. Once
// linked, if either process exits the other receives an exit signal; unless
// it is trapping exits (see [ProcessFlag]), a non-normal signal kills it.
//
// Links are idempotent. If [pid] is dead or never existed, [self] immediately
// receives an exit signal with reason [exitreason.NoProc].
func Link(self PID, pid PID) {
	sendSignal(self, linkSignal{pid})
	sendSignal(pid, linkSignal{self})
}

// Unlink removes a link between two processes. Idempotent. Does not prevent
// delivery of exit signals already in flight.
func Unlink(self PID, pid PID) {
	sendSignal(self, unlinkSignal{pid})
	sendSignal(pid, unlinkSignal{self})
}

// SpawnLink creates a new process and atomically links it to the caller, so
// the child cannot exit before the link is established.
func SpawnLink(self PID, r Runnable) PID {
	return doSpawn(r, nil, &self)
}

// Monitor establishes a one-way observation: [self] will receive a [DownMsg]
// when [pid] exits, but is otherwise unaffected. Returns a [Ref] identifying
// the monitor for [Demonitor] and for matching the DownMsg.
//
// Multiple monitors may exist between the same pair of processes; each
// generates a separate DownMsg. Monitoring a dead process delivers a DownMsg
// with reason [exitreason.NoProc] immediately. Monitors survive [Unlink].
func Monitor(self PID, pid PID) Ref {
	ref := MakeRef()
	signal := monitorSignal{ref: ref, monitor: self, monitored: pid}
	sendSignal(self, signal)
	sendSignal(pid, signal)
	return ref
}

// Demonitor removes a monitor. Always succeeds. Like Erlang's demonitor/1
// without the flush option, it does not remove a [DownMsg] that has already
// been delivered.
func Demonitor(self PID, ref Ref) bool {
	sendSignal(self, demonitorSignal{ref: ref, origin: self})
	return true
}

// SpawnMonitor creates a new process and atomically monitors it from the
// caller.
func SpawnMonitor(self PID, r Runnable) (PID, Ref) {
	ref := MakeRef()
	pid := doSpawn(r, &spawnMonitor{pid: self, ref: ref}, nil)
	return pid, ref
}

func doSpawn(r Runnable, sm *spawnMonitor, link *PID) PID {
	p := NewProcess(r)
	p.spawnMonitor = sm
	p.spawnLink = link

	go p.run()
	return PID{p: p}
}

// Spawn creates a new process with no link or monitor relationship to the
// caller.
func Spawn(r Runnable) PID {
	return doSpawn(r, nil, nil)
}

// NewMsg wraps a value in a message signal. Most callers want [Send].
func NewMsg(body any) Signal {
	return messageSignal{term: body}
}

// Send delivers a message to a process asynchronously. It never blocks and
// never errors; messages to dead or unknown processes are silently discarded,
// consistent with Erlang's fire-and-forget semantics.
func Send(pid PID, term any) {
	sendSignal(pid, messageSignal{term: term})
}

// SendAfter delivers [term] to [pid] after [tout] elapses, as if [Send] had
// been called. Returns a [TimerRef] that can be passed to [CancelTimer].
// The timer is a lightweight process; delivery is best-effort if the target
// exits first.
func SendAfter(pid PID, term any, tout time.Duration) TimerRef {
	if pid != UndefinedPID && pid.p.getStatus() == running {
		t := &timer{to: pid, term: term, tout: tout}

		timerPid := Spawn(t)

		return TimerRef{pid: timerPid}
	}
	return TimerRef{}
}

// sendSignal delivers a signal to a process. If the target is dead, link and
// monitor signals get the NoProc responses the caller is guaranteed; all
// other signals are dropped.
func sendSignal(pid PID, signal Signal) {
	if pid != UndefinedPID && !pid.IsNil() && pid.p.getStatus() == running {
		pid.p.send(signal)
	} else {
		switch sig := signal.(type) {
		case linkSignal:
			sig.pid.p.send(exitSignal{sender: pid, receiver: sig.pid, reason: exitreason.NoProc, link: true})
		case monitorSignal:
			sig.monitor.p.send(downSignal{proc: pid, ref: sig.ref, reason: exitreason.NoProc})
		default:
			// just ignore
		}
	}
}

// MakeRef generates a unique reference, used to correlate monitors, requests,
// and timer messages. Not cryptographically secure. Callers should not depend
// on the structure of the returned Ref.
func MakeRef() Ref {
	return Ref(xid.New().String())
}

// UndefinedRef is the zero value for [Ref], representing no reference.
var UndefinedRef Ref = Ref("")

// IsAlive checks if a process is currently running. This is a point-in-time
// check; prefer [Monitor] for lifecycle tracking.
func IsAlive(pid PID) bool {
	return !pid.IsNil() && pid.p.getStatus() == running
}

// ProcessFlag sets process configuration flags. The only supported flag is
// [TrapExit]: when true, exit signals from linked processes are converted to
// [ExitMsg] messages instead of killing the process. This is essential for
// supervisors and parent processes.
func ProcessFlag(self PID, flag ProcFlag, value any) {
	if self.IsNil() {
		panic("pid cannot be nil")
	}
	if flag == TrapExit {
		v := value.(bool)

		self.p.setTrapExits(v)
	}
}

// TrappingExits reports whether a process has exit trapping enabled.
func TrappingExits(self PID) bool {
	if self.IsNil() {
		return false
	}

	return self.p.trapExits()
}

// Exit sends an exit signal from [self] to [pid] with the given reason.
//
// If [pid] is trapping exits the signal is converted to an [ExitMsg], except
// for [exitreason.Kill] which always kills. If it is not trapping exits, any
// reason, Normal included, makes the process exit with that reason (only a
// Normal signal arriving through a link from another process is ignored).
// Signaling a dead process is a no-op.
func Exit(self PID, pid PID, reason *exitreason.S) {
	sendSignal(pid, exitSignal{sender: self, receiver: pid, reason: reason})
}
