// Package client defines the single-server client the cluster router talks
// to, together with an HTTP implementation for kvnode servers.
package client

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DefaultTimeout is applied when Options.Timeout is zero.
const DefaultTimeout = 2500 * time.Millisecond

// Client executes commands against exactly one server.
//
// Implementations are not required to support concurrent Execute calls.
type Client interface {
	// Execute runs a named command with positional arguments.
	// Connection and protocol failures are reported as *TransportError.
	Execute(ctx context.Context, name string, args ...string) (any, error)
	// ForceStandalone switches the client to a mode that does not rely on
	// resources shared with other clients in the process.
	ForceStandalone()
	// Addr returns "host:port" of the server.
	Addr() string
	Close() error
}

// Options is what a Client is constructed with.
type Options struct {
	Host       string
	Port       int
	Timeout    time.Duration
	Persistent string // non-empty keeps connections open between commands
	DB         int
	Password   string
}

func (o Options) Addr() string {
	return o.Host + ":" + strconv.Itoa(o.Port)
}

// Factory creates a Client for one server.
type Factory func(opts Options) (Client, error)

// TransportError is a connection or protocol level failure.
type TransportError struct {
	Addr    string
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client %s: %s: %v", e.Addr, e.Command, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is an error reply produced by the server for a command.
type ServerError struct {
	Addr    string
	Command string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("client %s: %s: %s", e.Addr, e.Command, e.Message)
}
