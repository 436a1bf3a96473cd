package conn

import "golang.org/x/sys/unix"

// fionread is _IOR('f', 127, int) from <sys/filio.h>.
const fionread = 0x4004667f

// bytesAvailable returns the number of unread bytes in the receive queue.
func bytesAvailable(fd int) (int, error) {
	return unix.IoctlGetInt(fd, fionread)
}
