// Package instance prevents two daemons from managing the same lights.
package instance

import (
	"fmt"
	"net"
)

// DefaultPort is the loopback port used as the single-instance lock.
// Binding a port is a lock the OS releases for us if the process dies,
// unlike a pid file.
const DefaultPort = 45654

// Lock holds the single-instance guard while open.
type Lock struct {
	listener net.Listener
}

// Acquire takes the single-instance lock, failing if another process
// already holds it. Pass 0 for the default port.
func Acquire(port int) (*Lock, error) {
	if port <= 0 {
		port = DefaultPort
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("another instance appears to be running (port %d busy): %w", port, err)
	}
	return &Lock{listener: listener}, nil
}

// Release frees the lock. Safe to call on a nil lock.
func (l *Lock) Release() {
	if l == nil || l.listener == nil {
		return
	}
	_ = l.listener.Close()
	l.listener = nil
}
