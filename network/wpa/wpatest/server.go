// Package wpatest provides a fake wpa_supplicant control socket for tests.
package wpatest

import (
	"net"
	"path/filepath"
	"sync"
	"testing"
)

// Server answers control socket requests with a handler.
type Server struct {
	// Dir is the control directory holding the interface socket.
	Dir string

	conn     *net.UnixConn
	mu       sync.Mutex
	handler  func(cmd string) string
	commands []string
}

// NewServer listens on the control socket of iface in a temporary
// directory. The server is closed when the test ends.
func NewServer(t testing.TB, iface string, handler func(cmd string) string) *Server {
	t.Helper()

	s := &Server{
		Dir:     t.TempDir(),
		handler: handler,
	}

	addr := &net.UnixAddr{Name: filepath.Join(s.Dir, iface), Net: "unixgram"}

	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		t.Fatalf("could not listen on %v: %v", addr.Name, err)
	}

	s.conn = conn
	t.Cleanup(func() { _ = conn.Close() })

	go s.serve()

	return s
}

func (s *Server) serve() {
	buf := make([]byte, 4096)

	for {
		n, addr, err := s.conn.ReadFromUnix(buf)
		if err != nil {
			return
		}

		cmd := string(buf[:n])

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		handler := s.handler
		s.mu.Unlock()

		reply := handler(cmd)
		if addr == nil {
			continue
		}

		_, _ = s.conn.WriteToUnix([]byte(reply), addr)
	}
}

// Commands returns the requests received so far.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	commands := make([]string, len(s.commands))
	copy(commands, s.commands)

	return commands
}

// SetHandler replaces the handler for the following requests.
func (s *Server) SetHandler(handler func(cmd string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = handler
}
