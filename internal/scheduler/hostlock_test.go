package scheduler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// heldPort returns a loopback address bound by someone else, as another
// vbs-autopilot process would hold it.
func heldPort(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestHostLock_ExcludesOtherHolders(t *testing.T) {
	other := heldPort(t)
	lock := NewHostLock(other.Addr().String())

	err := lock.Acquire()
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorContains(t, err, "another process")

	require.NoError(t, other.Close())
	require.NoError(t, lock.Acquire())
	assert.ErrorIs(t, lock.Acquire(), ErrBusy, "not reentrant")
	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release(), "second release is a no-op")
}

func TestHostLock_DefaultAddr(t *testing.T) {
	assert.Equal(t, DefaultLockAddr, NewHostLock("").Addr())
}

func TestSlot_HostLockHeldElsewhere(t *testing.T) {
	other := heldPort(t)
	slot := NewSlot(time.Hour, clock.NewFake(start)).WithHostLock(NewHostLock(other.Addr().String()))
	called := false

	_, err := slot.Run(context.Background(), "cli", func(context.Context) model.WorkflowResult {
		called = true
		return model.WorkflowResult{Success: true}
	})

	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, called)

	require.NoError(t, other.Close())
	res, err := slot.Run(context.Background(), "cli", succeed)
	require.NoError(t, err, "a busy host must not use up the interval")
	assert.True(t, res.Success)
}

func TestSlot_ReleasesHostLockAfterRun(t *testing.T) {
	ln := heldPort(t)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	slot := NewSlot(0, clock.NewFake(start)).WithHostLock(NewHostLock(addr))

	_, err := slot.Run(context.Background(), "cron", func(context.Context) model.WorkflowResult {
		_, lerr := net.Listen("tcp", addr)
		assert.Error(t, lerr, "port is held during the run")
		return model.WorkflowResult{Success: true}
	})
	require.NoError(t, err)

	again, err := net.Listen("tcp", addr)
	require.NoError(t, err, "port is free after the run")
	again.Close()
}
