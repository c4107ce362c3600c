package listener

import (
	"context"
	"net"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/netutil"
)

// Options tunes the listening socket and the connections it accepts.
type Options struct {
	// MaxConnections caps concurrently open connections. Zero means no cap.
	MaxConnections int
	// KeepAlivePeriod is the TCP keepalive interval. Zero uses the
	// system default, a negative value disables keepalive.
	KeepAlivePeriod time.Duration
}

// Listen opens a TCP listener on addr. Accepted connections have TCP_NODELAY
// and SO_KEEPALIVE set; once MaxConnections are open, Accept blocks until one
// of them is closed.
func Listen(addr string, opts Options) (net.Listener, error) {
	lc := net.ListenConfig{
		KeepAlive: opts.KeepAlivePeriod,
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			if err := c.Control(func(fd uintptr) { serr = setListenerOptions(fd) }); err != nil {
				return err
			}
			return serr
		},
	}

	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}

	ln = &tunedListener{Listener: ln, keepAlive: opts.KeepAlivePeriod >= 0}
	if opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, opts.MaxConnections)
	}
	return ln, nil
}

// tunedListener applies per-connection socket options on accept.
type tunedListener struct {
	net.Listener
	keepAlive bool
}

func (l *tunedListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if sc, ok := conn.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			raw.Control(func(fd uintptr) { setConnOptions(fd, l.keepAlive) })
		}
	}
	return conn, nil
}
