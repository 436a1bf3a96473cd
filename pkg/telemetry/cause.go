package telemetry

import (
	"errors"
	"net"

	"github.com/instrumental/instrumental-go/pkg/conn"
	"github.com/instrumental/instrumental-go/pkg/protocol"
)

// Failure causes used as the "cause" label.
const (
	CauseRejected   = "rejected"
	CausePeerClosed = "peer_closed"
	CauseTimeout    = "timeout"
	CauseNetwork    = "network"
	CauseOther      = "other"
)

// Cause classifies a connection failure.
func Cause(err error) string {
	var ne net.Error
	switch {
	case errors.Is(err, protocol.ErrRejected):
		return CauseRejected
	case errors.Is(err, conn.ErrPeerClosed):
		return CausePeerClosed
	case errors.As(err, &ne) && ne.Timeout():
		return CauseTimeout
	case errors.As(err, &ne):
		return CauseNetwork
	default:
		return CauseOther
	}
}
