//go:build !linux && !darwin

package conn

import (
	"net"
	"time"
)

type pollResult struct {
	readable  bool
	available int
}

// pollFD is unavailable here; Probe falls back to a read-deadline check.
func pollFD(nc net.Conn, timeout time.Duration) (pollResult, bool, error) {
	return pollResult{}, false, nil
}
