package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	probeTimeout = 300 * time.Millisecond
	verbTimeout  = 2 * time.Second
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

// Send delivers verb to the resident found in the port range. It reports
// delegated=false, with no error, when nothing answers the handshake.
func (c *tcpClient) Send(ctx context.Context, verb Verb) (bool, string, error) {
	port, ok := DetectResidentPort(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}
		return false, "", nil
	}
	reply, err := sendVerb(ctx, residentAddr(port), verb)
	return true, reply, err
}

// DetectResidentPort returns the first port in the range whose listener
// answers PING with PONG.
func DetectResidentPort(ctx context.Context) (int, bool) {
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if handshake(ctx, residentAddr(port)) == nil {
			return port, true
		}
	}
	return 0, false
}

func residentAddr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}

// dial opens a connection whose deadline is the earlier of timeout and the
// context deadline.
func dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	d := net.Dialer{Deadline: deadline}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(deadline)
	return conn, nil
}

// exchange writes one request line and returns a reader over the reply.
func exchange(conn net.Conn, line string) (*bufio.Reader, error) {
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(line); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return bufio.NewReader(conn), nil
}

func handshake(ctx context.Context, addr string) error {
	conn, err := dial(ctx, addr, probeTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	br, err := exchange(conn, pingRequest)
	if err != nil {
		return err
	}
	resp, err := br.ReadString('\n')
	if err != nil {
		return err
	}
	if resp != pongResponse {
		return fmt.Errorf("unexpected handshake reply %q", strings.TrimSpace(resp))
	}
	return nil
}

func sendVerb(ctx context.Context, addr string, verb Verb) (string, error) {
	conn, err := dial(ctx, addr, verbTimeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	br, err := exchange(conn, string(verb)+"\n")
	if err != nil {
		return "", err
	}
	status, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	body, _ := io.ReadAll(br)
	msg := strings.TrimSpace(string(body))
	switch status {
	case successResponse:
		return msg, nil
	case errorResponse:
		return "", errors.New(msg)
	}
	return "", errors.New("unexpected reply " + strings.TrimSpace(status))
}
