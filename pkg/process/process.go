// Package process inspects and stops the relay process recorded in its
// PID file.
package process

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"
)

// pollInterval is how often Terminate checks whether the process is gone.
const pollInterval = 50 * time.Millisecond

// IsAlive reports whether a process with pid exists. A process owned by
// another user counts as alive.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes without delivering anything: ESRCH means gone,
	// EPERM means alive but not ours.
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Terminate sends SIGTERM to pid and waits for it to exit. If it is still
// alive after grace it is killed. It returns whether a kill was needed.
func Terminate(ctx context.Context, pid int, grace time.Duration) (killed bool, err error) {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return false, fmt.Errorf("failed to send stop signal: %w", err)
	}
	if WaitExit(ctx, pid, grace) {
		return false, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err := p.Signal(syscall.SIGKILL); err != nil && IsAlive(pid) {
		return false, fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	return true, nil
}

// WaitExit polls until pid is gone, timeout passes or ctx is done. It
// reports whether the process exited.
func WaitExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		if !IsAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return !IsAlive(pid)
		case <-tick.C:
		}
	}
}
