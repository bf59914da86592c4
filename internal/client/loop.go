package client

import (
	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/chat"
	"github.com/omochice/dock-chat/internal/transport"
)

type eventKind int

const (
	eventFrame eventKind = iota
	eventStatus
	eventCommand
	eventRefresh
)

type event struct {
	kind   eventKind
	conn   *transport.Connection
	data   []byte
	status transport.Status
	err    error
	cmd    func(*chat.Router) bool
	done   chan struct{}
}

// run is the single owner of the router. It exits when the client closes.
func (c *Client) run() {
	defer c.wg.Done()
	c.publish()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.events:
			if c.apply(ev) {
				c.publish()
			}
			if ev.done != nil {
				close(ev.done)
			}
		}
	}
}

func (c *Client) apply(ev event) bool {
	switch ev.kind {
	case eventFrame:
		return c.router.Route(ev.data)
	case eventStatus:
		if !c.isCurrent(ev.conn) {
			return false
		}
		c.status = ev.status
		switch {
		case ev.err != nil:
			c.connErr = ev.err.Error()
		case ev.status == transport.StatusOpen:
			c.connErr = ""
		}
		return true
	case eventCommand:
		return ev.cmd(c.router)
	case eventRefresh:
		return true
	default:
		return false
	}
}

func (c *Client) isCurrent(conn *transport.Connection) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn == conn
}

// publish replaces the shared snapshot and signals Updates without blocking.
func (c *Client) publish() {
	snap := c.router.Snapshot()
	snap.Status = c.status.String()
	snap.ConnError = c.connErr

	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()

	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// post hands ev to the loop. It gives up once the client is closed.
func (c *Client) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// do runs cmd on the loop and waits until it has been applied.
func (c *Client) do(cmd func(*chat.Router) bool) error {
	if !c.isStarted() {
		return ErrNotStarted
	}
	done := make(chan struct{})
	if !c.post(event{kind: eventCommand, cmd: cmd, done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// pump forwards frames of one connection to the loop until it ends.
func (c *Client) pump(conn *transport.Connection) {
	defer c.wg.Done()
	for data := range conn.Frames() {
		if !c.post(event{kind: eventFrame, conn: conn, data: data}) {
			return
		}
	}
	c.log.Debug("frame stream ended", zap.String("conn_id", conn.ID()), zap.Stringer("status", conn.Status()))
}
