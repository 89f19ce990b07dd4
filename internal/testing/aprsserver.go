package testing

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// APRSServer is a minimal APRS-IS server for tests. It accepts any login,
// answers with "# logresp" and lets the test push lines to the most
// recent client.
type APRSServer struct {
	ln net.Listener

	mu          sync.Mutex
	skipLogresp bool
	conns       []net.Conn
	current     net.Conn
	logins      []string
	inbound     []string
	wg          sync.WaitGroup
}

// NewAPRSServer listens on a loopback port. It is closed on test cleanup.
func NewAPRSServer(t *testing.T) *APRSServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &APRSServer{ln: ln}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Addr returns host:port.
func (s *APRSServer) Addr() string {
	return s.ln.Addr().String()
}

func (s *APRSServer) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *APRSServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if _, err := conn.Write([]byte("# aprsc 2.1.14-test\r\n")); err != nil {
		return
	}

	r := bufio.NewReader(conn)
	login, err := r.ReadString('\n')
	if err != nil {
		return
	}
	login = strings.TrimRight(login, "\r\n")

	s.mu.Lock()
	skip := s.skipLogresp
	s.logins = append(s.logins, login)
	s.current = conn
	s.mu.Unlock()

	if !skip {
		call := ""
		if f := strings.Fields(login); len(f) > 1 {
			call = f[1]
		}
		if _, err := fmt.Fprintf(conn, "# logresp %s unverified, server T2TEST\r\n", call); err != nil {
			return
		}
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		s.mu.Lock()
		s.inbound = append(s.inbound, strings.TrimRight(line, "\r\n"))
		s.mu.Unlock()
	}
}

// SetSkipLogresp makes the server accept logins without answering them.
func (s *APRSServer) SetSkipLogresp(skip bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipLogresp = skip
}

// Send writes lines to the most recently logged-in client.
func (s *APRSServer) Send(lines ...string) error {
	s.mu.Lock()
	conn := s.current
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no client logged in")
	}
	for _, line := range lines {
		if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
			return err
		}
	}
	return nil
}

// Logins returns the login lines received so far.
func (s *APRSServer) Logins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logins...)
}

// Inbound returns the lines clients sent after logging in.
func (s *APRSServer) Inbound() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.inbound...)
}

// WaitLogins waits until n logins were seen.
func (s *APRSServer) WaitLogins(n int, timeout time.Duration) error {
	return Eventually(timeout, 5*time.Millisecond, func() bool {
		return len(s.Logins()) >= n
	})
}

// DropClients closes every client connection, simulating a lost link.
func (s *APRSServer) DropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
	s.current = nil
}

// Close stops the server and drops all clients.
func (s *APRSServer) Close() {
	s.ln.Close()
	s.DropClients()
	s.wg.Wait()
}
