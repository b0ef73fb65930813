//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package http1conn

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// pollReadable probes a socket-backed transport with a zero timeout.
// It reports (true, true) when the socket has pending data or was
// closed by the peer, (false, true) when it is idle and healthy, and
// ok=false when the transport does not expose a raw socket.
func pollReadable(t Transport) (readableOrClosed, ok bool) {
	sc, isSyscallConn := t.(syscall.Conn)
	if !isSyscallConn {
		return false, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return false, false
	}

	var signalled bool
	cerr := rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{
			Fd:     int32(fd),
			Events: unix.POLLIN | unix.POLLHUP | unix.POLLERR,
		}}
		n, perr := unix.Poll(fds, 0)
		if perr != nil || n > 0 {
			signalled = true
		}
	})
	if cerr != nil {
		// Cannot probe a transport whose descriptor is gone; report it
		// as signalled so the caller rejects the connection.
		return true, true
	}
	return signalled, true
}
