//go:build !windows

package ipc

import (
	"net"
	"os"
	"time"
)

// listen creates a unix domain socket readable only by the owner
func listen(address string) (net.Listener, error) {
	// stale socket from a crashed instance; the instance lock guarantees
	// nobody else is serving it
	_ = os.Remove(address)

	listener, err := net.Listen("unix", address)
	if err != nil {
		return nil, err
	}

	if err := os.Chmod(address, 0600); err != nil {
		listener.Close()
		return nil, err
	}
	return listener, nil
}

func dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", address, timeout)
}

func cleanup(address string) {
	_ = os.Remove(address)
}
