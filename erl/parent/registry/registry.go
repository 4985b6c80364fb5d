/*
Package registry provides the standard discovery index: a concurrent
id/pid/meta table mirroring a parent's children, readable by any process
without calling into the owner.

The owning parent is the single writer (wire a Table in with
parent.SetRegistry); readers must tolerate transient staleness, since a pid
read from the table may already have died.
*/
package registry

import (
	"sync"

	"github.com/uberbrodt/parent-go/erl"
)

// Entry is one child record as seen by readers.
type Entry struct {
	ID   string
	PID  erl.PID
	Meta any
}

type entry struct {
	id   string
	meta any
}

// Table is an RWMutex-guarded id→pid / pid→meta table. The zero value is not
// usable; create with [New].
type Table struct {
	mx    sync.RWMutex
	byID  map[string]erl.PID
	byPID map[erl.PID]entry
}

func New() *Table {
	return &Table{
		byID:  make(map[string]erl.PID),
		byPID: make(map[erl.PID]entry),
	}
}

// Register implements parent.Registry. Anonymous children (empty id) are
// reachable by pid only.
func (t *Table) Register(pid erl.PID, id string, meta any) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if id != "" {
		t.byID[id] = pid
	}
	t.byPID[pid] = entry{id: id, meta: meta}
}

// Unregister implements parent.Registry.
func (t *Table) Unregister(pid erl.PID) {
	t.mx.Lock()
	defer t.mx.Unlock()
	e, ok := t.byPID[pid]
	if !ok {
		return
	}
	if e.id != "" {
		delete(t.byID, e.id)
	}
	delete(t.byPID, pid)
}

// UpdateMeta implements parent.Registry.
func (t *Table) UpdateMeta(pid erl.PID, meta any) {
	t.mx.Lock()
	defer t.mx.Unlock()
	e, ok := t.byPID[pid]
	if !ok {
		return
	}
	e.meta = meta
	t.byPID[pid] = e
}

// WhereIs resolves a child id to its pid.
func (t *Table) WhereIs(id string) (erl.PID, bool) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	pid, ok := t.byID[id]
	return pid, ok
}

// IDOf resolves a pid to the child id it was registered with.
func (t *Table) IDOf(pid erl.PID) (string, bool) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	e, ok := t.byPID[pid]
	if !ok || e.id == "" {
		return "", false
	}
	return e.id, true
}

// Meta returns the child's current meta payload.
func (t *Table) Meta(pid erl.PID) (any, bool) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	e, ok := t.byPID[pid]
	if !ok {
		return nil, false
	}
	return e.meta, true
}

// All returns a snapshot of every registered child.
func (t *Table) All() []Entry {
	t.mx.RLock()
	defer t.mx.RUnlock()
	out := make([]Entry, 0, len(t.byPID))
	for pid, e := range t.byPID {
		out = append(out, Entry{ID: e.id, PID: pid, Meta: e.meta})
	}
	return out
}
