package transport_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/omochice/dock-chat/internal/transport"
)

// mockConn is a mock implementation of transport.Conn for testing.
type mockConn struct {
	readCh    chan []byte
	readErr   chan error
	writtenMu sync.Mutex
	written   [][]byte
	writeErr  error
	closeOnce sync.Once
	closed    chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:  make(chan []byte, 10),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, errors.New("use of closed connection")
	case err := <-m.readErr:
		return nil, err
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return "mock"
}

func (m *mockConn) Written() [][]byte {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	return m.written
}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func dialerFor(conn transport.Conn, err error) transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context, endpoint string) (transport.Conn, error) {
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// statusRecorder collects status notifications.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []transport.Status
	errs     []error
}

func (r *statusRecorder) record(s transport.Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
	r.errs = append(r.errs, err)
}

func (r *statusRecorder) Statuses() []transport.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Status(nil), r.statuses...)
}

// Compile-time check that mockConn implements transport.Conn
var _ transport.Conn = (*mockConn)(nil)
