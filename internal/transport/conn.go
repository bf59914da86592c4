// Package transport owns the single persistent connection to the messaging
// server and its Connecting -> Open -> Closed/Errored lifecycle.
package transport

import (
	"context"
	"net/http"
)

// Conn abstracts one websocket connection so that the lifecycle code does not
// depend on a particular websocket library.
type Conn interface {
	// Read reads a single text frame.
	// Returns io.EOF when the peer closed the connection normally.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single text frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens a Conn to endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, endpoint string) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (Conn, error) {
	return f(ctx, endpoint)
}

// SessionCookie is the cookie the server reads the session id from.
const SessionCookie = "sid"

// SessionHeader returns the handshake headers carrying the session id.
// An empty session yields an empty header.
func SessionHeader(session string) http.Header {
	h := http.Header{}
	if session != "" {
		h.Set("Cookie", (&http.Cookie{Name: SessionCookie, Value: session}).String())
	}
	return h
}
