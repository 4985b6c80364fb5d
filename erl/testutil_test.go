package erl

import (
	"testing"

	"gotest.tools/v3/assert"
)

type testEcho struct {
	wg       chan string
	expected string
}

// TestRunnable waits for one message and checks it against [expected].
type TestRunnable struct {
	t        *testing.T
	expected string
}

func (tr *TestRunnable) Receive(self PID, incoming <-chan any) error {
	tr.t.Logf("TestRunnable waiting for incoming message")
	m := <-incoming
	tr.t.Logf("TestRunnable received message %+v", m)

	msg, _ := m.(testEcho)

	assert.Equal(tr.t, msg.expected, tr.expected)
	msg.wg <- msg.expected
	return nil
}

func testSpawn(t *testing.T, r Runnable) PID {
	t.Helper()
	pid := Spawn(r)
	assert.Assert(t, IsAlive(pid))
	return pid
}
