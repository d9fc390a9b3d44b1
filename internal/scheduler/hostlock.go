package scheduler

import (
	"fmt"
	"net"
	"sync"
)

// DefaultLockAddr is the loopback port that marks a run in progress on this
// machine.
const DefaultLockAddr = "127.0.0.1:49610"

// HostLock is a machine-wide run lock held by binding a loopback TCP port.
// Only one process can hold the port, and the OS frees it when the holder
// exits, crashed or not.
type HostLock struct {
	addr string

	mu sync.Mutex
	ln net.Listener
}

func NewHostLock(addr string) *HostLock {
	if addr == "" {
		addr = DefaultLockAddr
	}
	return &HostLock{addr: addr}
}

func (l *HostLock) Addr() string { return l.addr }

// Acquire takes the lock, or returns ErrBusy if another process holds it.
func (l *HostLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return fmt.Errorf("%w (run lock %s already held by this process)", ErrBusy, l.addr)
	}
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("%w (run lock %s held by another process: %v)", ErrBusy, l.addr, err)
	}
	l.ln = ln
	return nil
}

// Release frees the lock. Releasing a free lock is a no-op.
func (l *HostLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	err := l.ln.Close()
	l.ln = nil
	return err
}
