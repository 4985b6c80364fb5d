package erl

import "fmt"

// A Process Identifier; wraps the underlying Process so we can reference it
// without exposing Process internals.
type PID struct {
	p *Process
}

var UndefinedPID PID = PID{}

func (pid PID) String() string {
	if pid.p != nil {
		if pid.p.getName() == "" {
			return fmt.Sprintf("PID<%d>", pid.p.id)
		} else {
			return fmt.Sprintf("PID<%d|%s>", pid.p.id, pid.p.getName())
		}
	} else {
		return "PID<undefined>"
	}
}

func (pid PID) IsNil() bool {
	return pid.p == nil
}

func (self PID) Equals(pid PID) bool {
	if self.IsNil() && pid.IsNil() {
		return true
	}

	if self.IsNil() || pid.IsNil() {
		return false
	}

	return self.p.id == pid.p.id
}

func (p PID) ResolvePID() (PID, error) {
	return p, nil
}

// A registered process name. Resolves to a PID via the name registry.
type Name string

func (n Name) ResolvePID() (PID, error) {
	pid, exists := WhereIs(n)
	if !exists {
		return pid, fmt.Errorf("no PID found for name %s", n)
	}
	return pid, nil
}

// Dest is anything that can be resolved to a live process: a [PID] or a
// registered [Name].
type Dest interface {
	ResolvePID() (PID, error)
}
