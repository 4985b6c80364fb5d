package parent

import (
	"fmt"
	"reflect"
	"time"

	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/timeout"
)

// UnlimitedRestarts disables a restart ceiling.
const UnlimitedRestarts int = timeout.InfinityInt

// A StartFun starts the child process. It must link the new process to
// [parent] (usually by starting it with SpawnLink or genserver.StartLink).
// Returning [exitreason.Ignore] declares that no process was created; any
// other error is a start failure.
type StartFun func(parent erl.PID) (erl.PID, error)

// ChildBuilder is the "module handle" start shape: a type that knows how to
// produce its own default child spec for a given argument. See
// [NewChildSpecFrom].
type ChildBuilder interface {
	ChildSpec(arg any) ChildSpec
}

// BuilderArgs pairs a [ChildBuilder] with the argument passed to it.
type BuilderArgs struct {
	Builder ChildBuilder
	Arg     any
}

// ChildSpec fully describes one child. Build with [NewChildSpec] or a struct
// literal; defaults are applied when the spec goes through [NewChildSpecFrom]
// (as [Parent.StartChild] does), which treats zero fields as unset.
type ChildSpec struct {
	// ID is the caller-chosen identifier, unique across the parent. Empty
	// means the child is anonymous and reachable only by PID.
	ID string

	Start StartFun

	Restart Restart

	Shutdown ShutdownOpt

	Type ChildType

	// Modules is advisory, used only by the tree-walk queries.
	Modules []string

	// Timeout bounds the child's lifetime: a running child that has not
	// stopped by the deadline is forcibly killed and treated as having
	// exited with reason timeout. [timeout.Infinity] disables it.
	Timeout time.Duration

	// MaxRestarts and MaxSeconds form the per-child restart ceiling:
	// more than MaxRestarts restart events within MaxSeconds seconds and the
	// parent gives up. Defaults: [UnlimitedRestarts] / 5 seconds.
	MaxRestarts int
	MaxSeconds  int

	// BindsTo references older siblings whose termination drags this child
	// down. References must resolve at registration time and may only point
	// at children of equal or greater restart strength.
	BindsTo []Ref

	// ShutdownGroup names a set of children that stop together. All members
	// of a group must share one restart policy.
	ShutdownGroup string

	// DiscardIgnored drops the descriptor when the start function returns
	// ignore, instead of keeping it with an undefined pid.
	DiscardIgnored bool

	// Meta is an opaque caller payload, readable with [Parent.ChildMeta] and
	// mutable with [Parent.UpdateChildMeta]. The parent never inspects it.
	Meta any
}

type ChildSpecOpt func(cs ChildSpec) ChildSpec

func SetRestart(restart Restart) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.Restart = restart
		return cs
	}
}

func SetShutdown(shutdown ShutdownOpt) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.Shutdown = shutdown
		return cs
	}
}

func SetChildType(t ChildType) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.Type = t
		// the type-derived shutdown default is applied in normalize
		return cs
	}
}

func SetTimeout(tout time.Duration) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.Timeout = tout
		return cs
	}
}

func SetChildMaxRestarts(max int, seconds int) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.MaxRestarts = max
		cs.MaxSeconds = seconds
		return cs
	}
}

func SetBindsTo(refs ...Ref) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.BindsTo = refs
		return cs
	}
}

// SetShutdownGroup makes the child a member of [group]. An ignored child
// (pid undefined) still counts as a group member: it joins the group's
// restart sets even though there is no process to stop.
func SetShutdownGroup(group string) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.ShutdownGroup = group
		return cs
	}
}

func SetDiscardIgnored(v bool) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.DiscardIgnored = v
		return cs
	}
}

func SetMeta(meta any) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.Meta = meta
		return cs
	}
}

func SetModules(modules ...string) ChildSpecOpt {
	return func(cs ChildSpec) ChildSpec {
		cs.Modules = modules
		return cs
	}
}

// NewChildSpec builds a spec for an identified child from [start] and
// [opts]. Pass id "" for an anonymous child. Fields the opts leave unset stay
// zero here; [NewChildSpecFrom] fills in their defaults.
func NewChildSpec(id string, start StartFun, opts ...ChildSpecOpt) ChildSpec {
	cs := ChildSpec{
		ID:    id,
		Start: start,
	}

	for _, opt := range opts {
		cs = opt(cs)
	}
	return cs
}

// NewChildSpecFrom is the spec normalizer. It accepts three shapes:
//
//   - a [ChildBuilder]: the builder is asked for its default spec with a nil
//     argument
//   - a [BuilderArgs]: the builder is asked with the given argument
//   - a [ChildSpec]: used as-is, with zero fields defaulted
//
// and returns a fully populated spec, or [ErrInvalidChildSpec].
func NewChildSpecFrom(in any) (ChildSpec, error) {
	switch spec := in.(type) {
	case ChildBuilder:
		cs := spec.ChildSpec(nil)
		if len(cs.Modules) == 0 {
			cs.Modules = []string{builderModule(spec)}
		}
		return normalize(cs)
	case BuilderArgs:
		if spec.Builder == nil {
			return ChildSpec{}, fmt.Errorf("%w: nil builder", ErrInvalidChildSpec)
		}
		cs := spec.Builder.ChildSpec(spec.Arg)
		if len(cs.Modules) == 0 {
			cs.Modules = []string{builderModule(spec.Builder)}
		}
		return normalize(cs)
	case ChildSpec:
		return normalize(spec)
	default:
		return ChildSpec{}, fmt.Errorf("%w: unknown spec shape %T", ErrInvalidChildSpec, in)
	}
}

func builderModule(b ChildBuilder) string {
	t := reflect.TypeOf(b)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// normalize layers defaults onto a spec and rejects invalid field values.
func normalize(cs ChildSpec) (ChildSpec, error) {
	if cs.Start == nil {
		return cs, fmt.Errorf("%w: no start function", ErrInvalidChildSpec)
	}

	if cs.Restart == "" {
		cs.Restart = Permanent
	}
	if !cs.Restart.valid() {
		return cs, fmt.Errorf("%w: unknown restart policy %q", ErrInvalidChildSpec, cs.Restart)
	}

	if cs.Type == "" {
		cs.Type = WorkerChild
	}
	if cs.Type != WorkerChild && cs.Type != SupervisorChild {
		return cs, fmt.Errorf("%w: unknown child type %q", ErrInvalidChildSpec, cs.Type)
	}

	if cs.Shutdown.isZero() {
		if cs.Type == SupervisorChild {
			cs.Shutdown = ShutdownOpt{Infinity: true}
		} else {
			cs.Shutdown = ShutdownOpt{Timeout: 5_000}
		}
	}
	if cs.Shutdown.Timeout < 0 {
		return cs, fmt.Errorf("%w: negative shutdown timeout", ErrInvalidChildSpec)
	}

	if cs.Timeout == 0 {
		cs.Timeout = timeout.Infinity
	}
	if cs.Timeout < 0 {
		return cs, fmt.Errorf("%w: negative timeout", ErrInvalidChildSpec)
	}

	if cs.MaxRestarts == 0 {
		cs.MaxRestarts = UnlimitedRestarts
	}
	if cs.MaxSeconds == 0 {
		cs.MaxSeconds = 5
	}
	if cs.MaxSeconds < 0 {
		return cs, fmt.Errorf("%w: negative max seconds", ErrInvalidChildSpec)
	}

	return cs, nil
}
