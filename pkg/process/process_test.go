package process

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAlive(t *testing.T) {
	assert.True(t, IsAlive(os.Getpid()))
	assert.False(t, IsAlive(0))
	assert.False(t, IsAlive(-1))
	assert.False(t, IsAlive(999999999))
}

func TestTerminateStopsChild(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skip("sleep not available")
	}
	pid := cmd.Process.Pid
	// Reap the child so it does not linger as a zombie.
	go cmd.Wait()

	killed, err := Terminate(context.Background(), pid, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, killed)
	assert.False(t, IsAlive(pid))
}

func TestWaitExitTimesOut(t *testing.T) {
	start := time.Now()
	assert.False(t, WaitExit(context.Background(), os.Getpid(), 120*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
