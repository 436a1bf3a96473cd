//go:build linux || darwin

package conn

import (
	"errors"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

type pollResult struct {
	readable  bool
	available int
}

// pollFD polls the socket for readability and reports how many bytes are
// queued. A zero timeout returns immediately. supported is false when nc
// does not expose a file descriptor.
func pollFD(nc net.Conn, timeout time.Duration) (res pollResult, supported bool, err error) {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return res, false, nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return res, true, err
	}

	// Sub-millisecond timeouts poll without waiting.
	ms := int(timeout / time.Millisecond)

	var opErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(fds, ms)
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if err != nil {
				opErr = err
				return
			}
			if n == 0 {
				return
			}
			break
		}
		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			return
		}
		res.readable = true
		res.available, opErr = bytesAvailable(int(fd))
	})
	if ctrlErr != nil {
		return res, true, ctrlErr
	}
	return res, true, opErr
}
