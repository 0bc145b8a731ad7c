package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	residentHost    = "127.0.0.1"
	pingRequest     = "PING\n"
	pongResponse    = "PONG\n"
	successResponse = "SUCCESS\n"
	errorResponse   = "ERROR\n"
)

var errServerClosed = errors.New("singleinstance: server closed")

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	incoming chan *tcpConn
	closed   chan struct{}
	once     sync.Once
	port     int
}

func newTcpServer() Server {
	return &tcpServer{incoming: make(chan *tcpConn, 8), closed: make(chan struct{})}
}

// Start binds ONLY the start port of the configured range. If occupied, fail.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start, _ := getPortRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logrus.Warnf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = start
	logrus.Infof("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx, lis)
	return nil
}

// Port returns the bound port (0 if not started).
func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("singleinstance: accept loop panic: %v", r)
		}
	}()
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		tc, ok := s.readRequest(c)
		if !ok {
			continue
		}
		select {
		case s.incoming <- tc:
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-s.closed:
			_ = c.Close()
			return
		}
	}
}

// readRequest answers PING inline. Any other line is parsed as a verb; bad
// verbs are rejected here and never reach Next.
func (s *tcpServer) readRequest(c net.Conn) (*tcpConn, bool) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	line, _ := br.ReadString('\n')

	if line == pingRequest {
		logrus.Debugf("singleinstance: PING from %s -> PONG", remote)
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return nil, false
	}

	tc := &tcpConn{c: c, w: bw}
	verb, err := ParseVerb(line)
	if err != nil {
		logrus.Warnf("singleinstance: bad request from %s: %v", remote, err)
		_ = tc.RespondError(err.Error())
		_ = c.Close()
		return nil, false
	}
	_ = c.SetDeadline(time.Time{})
	logrus.Infof("singleinstance: %s from %s", verb, remote)
	tc.r = Request{Verb: verb}
	return tc, true
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errServerClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.lis != nil {
			err = s.lis.Close()
			s.lis = nil
		}
	})
	return err
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(state string) error {
	if _, err := tc.w.WriteString(successResponse + state); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorResponse + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
