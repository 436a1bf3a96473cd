package conn

import "golang.org/x/sys/unix"

// bytesAvailable returns the number of unread bytes in the receive queue.
func bytesAvailable(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.SIOCINQ)
}
