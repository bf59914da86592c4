package client_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/omochice/dock-chat/internal/directory"
	"github.com/omochice/dock-chat/internal/transport"
)

// fakeConn is an in-memory transport.Conn. Frames pushed with deliver are
// returned by Read; writes are recorded.
type fakeConn struct {
	in        chan []byte
	mu        sync.Mutex
	written   [][]byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) deliver(data string) {
	f.in <- []byte(data)
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.closed:
		return nil, io.EOF
	case data := <-f.in:
		return data, nil
	}
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) RemoteAddr() string {
	return "fake"
}

func (f *fakeConn) Written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out a fresh fakeConn per dial, or fails with err.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeFetcher struct {
	me    directory.Counterpart
	meErr error
	peers []directory.Counterpart
}

func (f *fakeFetcher) Me(ctx context.Context) (directory.Counterpart, error) {
	return f.me, f.meErr
}

func (f *fakeFetcher) Followers(ctx context.Context, userID int64) ([]directory.Counterpart, error) {
	return f.peers, nil
}

func (f *fakeFetcher) Following(ctx context.Context, userID int64) ([]directory.Counterpart, error) {
	return nil, nil
}

var errRefused = errors.New("connection refused")
