package parent

import (
	"github.com/uberbrodt/parent-go/erl"
)

// Registry is the discovery index adapter: an external id/pid/meta table
// kept in sync with every state mutation so processes other than the owner
// can resolve children without calling into it. The parent is the single
// writer; implementations must support concurrent readers and must not
// panic (the parent shields itself regardless).
//
// See the registry package for the standard implementation.
type Registry interface {
	Register(pid erl.PID, id string, meta any)
	Unregister(pid erl.PID)
	UpdateMeta(pid erl.PID, meta any)
}

func (p *Parent) notifyRegister(cs *childState) {
	if p.opts.registry == nil || cs.pid.IsNil() {
		return
	}
	defer p.recoverRegistry()
	p.opts.registry.Register(cs.pid, cs.spec.ID, cs.meta)
}

func (p *Parent) notifyUnregister(cs *childState) {
	if p.opts.registry == nil || cs.pid.IsNil() {
		return
	}
	defer p.recoverRegistry()
	p.opts.registry.Unregister(cs.pid)
}

func (p *Parent) notifyUpdateMeta(cs *childState) {
	if p.opts.registry == nil || cs.pid.IsNil() {
		return
	}
	defer p.recoverRegistry()
	p.opts.registry.UpdateMeta(cs.pid, cs.meta)
}

func (p *Parent) recoverRegistry() {
	if r := recover(); r != nil {
		erl.Logger.Printf("Parent[%v]: registry adapter panicked: %v", p.self, r)
	}
}
