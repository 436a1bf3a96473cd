// Package collectortest provides an in-process collector for tests.
package collectortest

import (
	"bufio"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

// Accept is the reply that authenticates a session.
const Accept = "ok\nok\n"

// Session scripts how the server treats one connection.
type Session struct {
	// Reply is written after the two handshake lines were read. Any reply
	// other than Accept is followed by a close.
	Reply string

	// Silent suppresses the reply entirely and keeps the connection open.
	Silent bool

	// CloseAfterHandshake closes the connection right after an accepted
	// handshake.
	CloseAfterHandshake bool
}

// Line is one message line received after a handshake.
type Line struct {
	Conn int
	Text string
}

// Server is a scripted collector listening on a loopback port.
type Server struct {
	t        testing.TB
	ln       net.Listener
	sessions []Session
	lines    chan Line

	mu         sync.Mutex
	conns      []net.Conn
	handshakes [][]string
	closed     map[int]chan struct{}
}

// NewServer starts a server. Session i scripts the i-th connection (1-based
// as i+1); connections past the end reuse the last session, and with no
// sessions every connection is accepted.
func NewServer(t testing.TB, sessions ...Session) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{
		t:        t,
		ln:       ln,
		sessions: sessions,
		lines:    make(chan Line, 1024),
		closed:   make(map[int]chan struct{}),
	}
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops the listener and closes every open connection.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}

// Connections returns how many connections were accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Handshake returns the handshake lines read on connection n (1-based).
func (s *Server) Handshake(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.handshakes) {
		return nil
	}
	return append([]string(nil), s.handshakes[n-1]...)
}

// Closed returns a channel closed once the server closed connection n on
// its own initiative.
func (s *Server) Closed(n int) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.closed[n]
	if !ok {
		ch = make(chan struct{})
		s.closed[n] = ch
	}
	return ch
}

// NextLine waits for the next received line.
func (s *Server) NextLine(timeout time.Duration) (Line, bool) {
	select {
	case l := <-s.lines:
		return l, true
	case <-time.After(timeout):
		return Line{}, false
	}
}

func (s *Server) session(n int) Session {
	if len(s.sessions) == 0 {
		return Session{Reply: Accept}
	}
	if n > len(s.sessions) {
		return s.sessions[len(s.sessions)-1]
	}
	return s.sessions[n-1]
}

func (s *Server) accept() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, c)
		s.handshakes = append(s.handshakes, nil)
		n := len(s.conns)
		s.mu.Unlock()
		go s.handle(n, c)
	}
}

func (s *Server) handle(n int, c net.Conn) {
	sess := s.session(n)
	r := bufio.NewReader(c)

	for i := 0; i < 2; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		s.mu.Lock()
		s.handshakes[n-1] = append(s.handshakes[n-1], line)
		s.mu.Unlock()
	}

	if sess.Silent {
		io.Copy(io.Discard, r)
		return
	}
	if _, err := io.WriteString(c, sess.Reply); err != nil {
		return
	}
	if sess.Reply != Accept || sess.CloseAfterHandshake {
		c.Close()
		s.markClosed(n)
		return
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		s.lines <- Line{Conn: n, Text: line}
	}
}

func (s *Server) markClosed(n int) {
	s.mu.Lock()
	ch, ok := s.closed[n]
	if !ok {
		ch = make(chan struct{})
		s.closed[n] = ch
	}
	s.mu.Unlock()
	close(ch)
}
