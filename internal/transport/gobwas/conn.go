// Package gobwas provides an alternate websocket transport built on github.com/gobwas/ws.
package gobwas

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/dock-chat/internal/transport"
)

// bufferedConn wraps a net.Conn with the reader returned by the handshake so
// that frames already buffered during the upgrade are not lost.
type bufferedConn struct {
	net.Conn
	reader io.Reader
	wmu    *sync.Mutex
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}

// Write is used for control replies (pong, close) emitted while reading.
func (bc *bufferedConn) Write(p []byte) (int, error) {
	bc.wmu.Lock()
	defer bc.wmu.Unlock()
	return bc.Conn.Write(p)
}

// Conn adapts a gobwas client connection to the transport.Conn interface.
type Conn struct {
	raw        net.Conn
	rw         *bufferedConn
	wmu        sync.Mutex
	remoteAddr string
}

// NewConn wraps an upgraded client connection. br is the reader returned by
// ws.Dialer.Dial and may be nil.
func NewConn(conn net.Conn, br *bufio.Reader) *Conn {
	c := &Conn{raw: conn, remoteAddr: conn.RemoteAddr().String()}
	var r io.Reader = conn
	if br != nil {
		r = io.MultiReader(br, conn)
	}
	c.rw = &bufferedConn{Conn: conn, reader: r, wmu: &c.wmu}
	return c
}

// Read implements transport.Conn.
// Control frames are answered inline; a normal close is reported as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.raw.SetReadDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			_ = c.raw.SetReadDeadline(time.Time{})
		}
	}()

	data, _, err := wsutil.ReadServerData(c.rw)
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) &&
			(closed.Code == ws.StatusNormalClosure || closed.Code == ws.StatusGoingAway) {
			return nil, io.EOF
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return data, nil
}

// Write implements transport.Conn.
// The frame is assembled first so that it reaches the socket in one write.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	var frame bytes.Buffer
	if err := wsutil.WriteClientText(&frame, data); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.raw.SetWriteDeadline(deadline)
		defer c.raw.SetWriteDeadline(time.Time{})
	}
	_, err := c.raw.Write(frame.Bytes())
	return err
}

// Close implements transport.Conn.
func (c *Conn) Close() error {
	var frame bytes.Buffer
	_ = wsutil.WriteClientMessage(&frame, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))

	c.wmu.Lock()
	_, _ = c.raw.Write(frame.Bytes())
	c.wmu.Unlock()

	return c.raw.Close()
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// Dialer dials websocket endpoints with gobwas/ws.
type Dialer struct {
	Header  http.Header
	Timeout time.Duration
}

// Dial implements transport.Dialer.
func (d Dialer) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	dialer := ws.Dialer{Timeout: d.Timeout}
	if len(d.Header) > 0 {
		dialer.Header = ws.HandshakeHeaderHTTP(d.Header)
	}
	conn, br, _, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewConn(conn, br), nil
}
