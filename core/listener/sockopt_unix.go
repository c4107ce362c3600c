//go:build unix

package listener

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func setListenerOptions(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return errors.Wrap(err, "failed to set SO_REUSEADDR")
	}
	return nil
}

// setConnOptions disables Nagle's algorithm and toggles TCP keepalive.
// Failures are ignored: the connection is usable without them.
func setConnOptions(fd uintptr, keepAlive bool) {
	unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	ka := 0
	if keepAlive {
		ka = 1
	}
	unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, ka)
}
