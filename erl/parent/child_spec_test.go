package parent

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/uberbrodt/parent-go/chronos"
	"github.com/uberbrodt/parent-go/erl"
	"github.com/uberbrodt/parent-go/erl/timeout"
)

type fakeWorker struct {
	restart Restart
}

func (fw fakeWorker) ChildSpec(arg any) ChildSpec {
	spec := NewChildSpec("fake", childStart())
	if fw.restart != "" {
		spec.Restart = fw.restart
	}
	if arg != nil {
		spec.Meta = arg
	}
	return spec
}

func TestNewChildSpecFrom_Defaults(t *testing.T) {
	spec, err := NewChildSpecFrom(NewChildSpec("w", childStart()))
	assert.NilError(t, err)

	assert.Equal(t, spec.ID, "w")
	assert.Equal(t, spec.Restart, Permanent)
	assert.Equal(t, spec.Type, WorkerChild)
	assert.Equal(t, spec.Shutdown, ShutdownOpt{Timeout: 5_000})
	assert.Equal(t, spec.Timeout, timeout.Infinity)
	assert.Equal(t, spec.MaxRestarts, UnlimitedRestarts)
	assert.Equal(t, spec.MaxSeconds, 5)
	assert.Assert(t, !spec.DiscardIgnored)
	assert.Equal(t, len(spec.BindsTo), 0)
	assert.Equal(t, spec.ShutdownGroup, "")
}

func TestNewChildSpecFrom_SupervisorShutdownDefault(t *testing.T) {
	spec, err := NewChildSpecFrom(NewChildSpec("s", childStart(),
		SetChildType(SupervisorChild),
	))
	assert.NilError(t, err)
	assert.Equal(t, spec.Shutdown, ShutdownOpt{Infinity: true})
}

func TestNewChildSpecFrom_Builder(t *testing.T) {
	spec, err := NewChildSpecFrom(fakeWorker{restart: Transient})
	assert.NilError(t, err)
	assert.Equal(t, spec.ID, "fake")
	assert.Equal(t, spec.Restart, Transient)
	assert.DeepEqual(t, spec.Modules, []string{"parent.fakeWorker"})
}

func TestNewChildSpecFrom_BuilderArgs(t *testing.T) {
	spec, err := NewChildSpecFrom(BuilderArgs{Builder: fakeWorker{}, Arg: "payload"})
	assert.NilError(t, err)
	assert.Equal(t, spec.Meta, any("payload"))
}

func TestNewChildSpecFrom_Invalid(t *testing.T) {
	_, err := NewChildSpecFrom(42)
	assert.ErrorIs(t, err, ErrInvalidChildSpec)

	_, err = NewChildSpecFrom(ChildSpec{ID: "nostart"})
	assert.ErrorIs(t, err, ErrInvalidChildSpec)

	_, err = NewChildSpecFrom(NewChildSpec("w", childStart(), SetRestart(Restart("sometimes"))))
	assert.ErrorIs(t, err, ErrInvalidChildSpec)

	_, err = NewChildSpecFrom(BuilderArgs{})
	assert.ErrorIs(t, err, ErrInvalidChildSpec)

	_, err = NewChildSpecFrom(NewChildSpec("w", childStart(), SetTimeout(-chronos.Dur("1s"))))
	assert.ErrorIs(t, err, ErrInvalidChildSpec)
}

func TestChildSpecOpts(t *testing.T) {
	spec, err := NewChildSpecFrom(NewChildSpec("w", childStart(),
		SetRestart(WithDep),
		SetShutdown(ShutdownOpt{BrutalKill: true}),
		SetTimeout(chronos.Dur("1m")),
		SetChildMaxRestarts(10, 60),
		SetBindsTo(ByID("dep1"), ByPID(erl.UndefinedPID)),
		SetShutdownGroup("grp"),
		SetDiscardIgnored(true),
		SetMeta(map[string]int{"x": 1}),
		SetModules("mymod"),
	))
	assert.NilError(t, err)

	assert.Equal(t, spec.Restart, WithDep)
	assert.Equal(t, spec.Shutdown, ShutdownOpt{BrutalKill: true})
	assert.Equal(t, spec.Timeout, chronos.Dur("1m"))
	assert.Equal(t, spec.MaxRestarts, 10)
	assert.Equal(t, spec.MaxSeconds, 60)
	assert.Equal(t, len(spec.BindsTo), 2)
	assert.Equal(t, spec.ShutdownGroup, "grp")
	assert.Assert(t, spec.DiscardIgnored)
	assert.DeepEqual(t, spec.Modules, []string{"mymod"})
}

func TestRestartStrengthOrder(t *testing.T) {
	assert.Assert(t, Permanent.strength() > Transient.strength())
	assert.Assert(t, Transient.strength() > WithDep.strength())
	assert.Assert(t, WithDep.strength() > Temporary.strength())
	assert.Assert(t, !Restart("nope").valid())
}
