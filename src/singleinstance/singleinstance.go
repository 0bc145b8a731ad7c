package singleinstance

// Single-instance ownership and remote control of the resident capture process.

import (
	"context"
	"fmt"
	"strings"
)

// Verb is one remote-control command.
type Verb string

const (
	VerbToggle Verb = "TOGGLE"
	VerbStart  Verb = "START"
	VerbStop   Verb = "STOP"
	VerbStatus Verb = "STATUS"
)

// ParseVerb accepts a verb in any case, with surrounding whitespace.
func ParseVerb(s string) (Verb, error) {
	v := Verb(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerbToggle, VerbStart, VerbStop, VerbStatus:
		return v, nil
	}
	return "", fmt.Errorf("unknown command %q", strings.TrimSpace(s))
}

// Server owns the TCP endpoint and answers control requests.
type Server interface {
	// Start listens on the first port of the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request, or the ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one client connection.
type Conn interface {
	Request() Request
	// RespondSuccess sends SUCCESS followed by the resulting state.
	RespondSuccess(state string) error
	RespondError(msg string) error
	Close() error
}

type Request struct {
	Verb Verb
}

// Client delegates a verb to a resident server.
type Client interface {
	// Send scans the port range, performs the PING handshake and delivers verb.
	// If no resident answers it returns delegated=false and a nil error.
	Send(ctx context.Context, verb Verb) (delegated bool, reply string, err error)
}

// Handler executes a verb and returns the resulting state.
type Handler func(ctx context.Context, verb Verb) (state string, err error)

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
