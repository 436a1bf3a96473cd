// Package conn owns the socket side of a collector session: dialing,
// the authentication handshake, the pre-send liveness probe, framed writes,
// and graceful close.
//
// The protocol has no per-message acknowledgement, so a half-open TCP
// connection would otherwise swallow messages silently. [Conn.Probe] checks
// before every send whether the peer has closed: it polls the socket for
// readability with a short timeout, and a readable socket with zero bytes
// available means the peer sent FIN or RST. Bytes the collector pushes
// unprompted carry no meaning and are discarded.
//
// A Conn is not safe for concurrent use except for [Conn.Abort], which may
// be called from any goroutine to unblock pending I/O.
package conn
