package parent

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/uberbrodt/parent-go/chronos"
)

func TestAddRestart_UnderCeiling(t *testing.T) {
	now := chronos.Now("")
	var ring []time.Time
	var exceeded bool

	for i := 0; i < 3; i++ {
		ring, exceeded = addRestart(ring, now.Add(time.Duration(i)*time.Second), 3, 5)
		assert.Assert(t, !exceeded)
	}
	assert.Equal(t, len(ring), 3)
}

func TestAddRestart_ExceedsCeiling(t *testing.T) {
	now := chronos.Now("")
	var ring []time.Time
	var exceeded bool

	for i := 0; i < 3; i++ {
		ring, exceeded = addRestart(ring, now, 2, 5)
	}
	assert.Assert(t, exceeded)
}

func TestAddRestart_WindowSlides(t *testing.T) {
	now := chronos.Now("")
	var ring []time.Time
	var exceeded bool

	ring, exceeded = addRestart(ring, now, 1, 5)
	assert.Assert(t, !exceeded)
	ring, exceeded = addRestart(ring, now.Add(chronos.Dur("1s")), 1, 5)
	assert.Assert(t, exceeded)

	// past the window, old entries are trimmed and don't count
	ring, exceeded = addRestart(ring, now.Add(chronos.Dur("10s")), 1, 5)
	assert.Assert(t, !exceeded)
	assert.Equal(t, len(ring), 1)
}

func TestAddRestart_Unlimited(t *testing.T) {
	now := chronos.Now("")
	var ring []time.Time
	var exceeded bool

	for i := 0; i < 100; i++ {
		ring, exceeded = addRestart(ring, now, UnlimitedRestarts, 5)
		assert.Assert(t, !exceeded)
	}
}
