// Package client runs the messaging session: it owns the connection, routes
// inbound frames into conversations and publishes snapshots for rendering.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/chat"
	"github.com/omochice/dock-chat/internal/directory"
	"github.com/omochice/dock-chat/internal/logging"
	"github.com/omochice/dock-chat/internal/metrics"
	"github.com/omochice/dock-chat/internal/transport"
)

var (
	// ErrNoIdentity is returned by Start when the signed-in user cannot be
	// determined. No connection is attempted without one.
	ErrNoIdentity = errors.New("no signed-in user")

	// ErrNotStarted is returned by operations that need a running session.
	ErrNotStarted = errors.New("client not started")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logging.OrNop(l) }
}

// WithMetrics records client activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithMaxSurfaces bounds the number of open surfaces; 0 means unbounded.
func WithMaxSurfaces(n int) Option {
	return func(c *Client) { c.maxSurfaces = n }
}

// WithDedupe drops inbound messages identical to one already routed.
func WithDedupe(enabled bool) Option {
	return func(c *Client) { c.dedupe = enabled }
}

// Client is a messaging session for one signed-in user.
//
// All conversation state is owned by a single event loop goroutine. Inbound
// frames, status changes and user commands are applied there in arrival
// order; readers only ever see published Snapshots.
type Client struct {
	endpoint    string
	dialer      transport.Dialer
	dir         *directory.Cache
	fetcher     directory.Fetcher
	log         *zap.Logger
	metrics     *metrics.Metrics
	maxSurfaces int
	dedupe      bool

	self     directory.Counterpart
	router   *chat.Router
	composer *chat.Composer
	status   transport.Status
	connErr  string

	events  chan event
	updates chan struct{}

	snapMu sync.RWMutex
	snap   chat.Snapshot

	connMu sync.Mutex
	conn   *transport.Connection

	startOnce sync.Once
	started   chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Client that dials endpoint with dialer and resolves identity
// and contacts through fetcher.
func New(endpoint string, dialer transport.Dialer, fetcher directory.Fetcher, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		endpoint:    endpoint,
		dialer:      dialer,
		fetcher:     fetcher,
		log:         zap.NewNop(),
		maxSurfaces: 8,
		status:      transport.StatusClosed,
		events:      make(chan event),
		updates:     make(chan struct{}, 1),
		started:     make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dir = directory.New(fetcher, c.log.Named("directory"))
	c.snap = chat.Snapshot{Status: c.status.String(), Conversations: map[chat.Key][]chat.Message{}}
	return c
}

// Start resolves the signed-in user, then loads the directory and opens the
// connection in the background. Progress is observed through Updates.
func (c *Client) Start(ctx context.Context) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}

	me, err := c.fetcher.Me(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	if me.ID <= 0 {
		return ErrNoIdentity
	}

	first := false
	c.startOnce.Do(func() {
		first = true
		c.self = me
		c.router = chat.NewRouter(me.ID,
			chat.WithLogger(c.log.Named("router")),
			chat.WithMetrics(c.metrics),
			chat.WithMaxSurfaces(c.maxSurfaces),
			chat.WithDedupe(c.dedupe),
		)
		c.composer = chat.NewComposer(currentConn{c}, c.log.Named("composer"), c.metrics)
		close(c.started)
	})
	if !first {
		return errors.New("client already started")
	}

	c.log.Info("signed in", zap.Int64("user", me.ID), zap.String("name", me.DisplayName()))

	c.wg.Add(3)
	go c.run()
	go func() {
		defer c.wg.Done()
		_ = c.dir.Load(c.ctx, me.ID)
		c.post(event{kind: eventRefresh})
	}()
	go func() {
		defer c.wg.Done()
		if err := c.Reconnect(c.ctx); err != nil {
			c.log.Warn("initial connection failed", zap.Error(err))
		}
	}()
	return nil
}

// Self returns the signed-in user. It is zero before Start succeeds.
func (c *Client) Self() directory.Counterpart {
	if !c.isStarted() {
		return directory.Counterpart{}
	}
	return c.self
}

// Directory returns the contact cache.
func (c *Client) Directory() *directory.Cache {
	return c.dir
}

// Updates signals that a new Snapshot is available. Signals coalesce; the
// channel is closed by Close.
func (c *Client) Updates() <-chan struct{} {
	return c.updates
}

// Snapshot returns the most recently published state.
func (c *Client) Snapshot() chat.Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Status returns the connectivity of the current connection.
func (c *Client) Status() transport.Status {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return transport.StatusClosed
	}
	return conn.Status()
}

// IsConnected reports whether frames can be sent.
func (c *Client) IsConnected() bool {
	return c.Status() == transport.StatusOpen
}

// Reconnect replaces the current connection with a new one and opens it.
// The previous connection is closed first.
func (c *Client) Reconnect(ctx context.Context) error {
	if !c.isStarted() {
		return ErrNotStarted
	}
	if c.ctx.Err() != nil {
		return ErrClosed
	}

	var conn *transport.Connection
	conn = transport.New(c.dialer, c.endpoint,
		transport.WithLogger(c.log.Named("transport")),
		transport.WithMetrics(c.metrics),
		transport.WithStatusFunc(func(s transport.Status, err error) {
			c.post(event{kind: eventStatus, conn: conn, status: s, err: err})
		}),
	)

	c.connMu.Lock()
	old := c.conn
	c.conn = conn
	c.connMu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	if err := conn.Open(ctx); err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.ctx.Err() != nil {
		_ = conn.Close()
		return ErrClosed
	}
	c.wg.Add(1)
	go c.pump(conn)
	return nil
}

// Disconnect closes the current connection. The session stays alive and
// Reconnect may be called again.
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Close ends the session and releases the connection. It is idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.Disconnect()
		c.wg.Wait()
		close(c.updates)
	})
	return err
}

// SendDirect sends text to the user toID. Nothing is recorded locally; the
// message appears once the server echoes it back.
func (c *Client) SendDirect(ctx context.Context, toID int64, text string) error {
	if !c.isStarted() {
		return ErrNotStarted
	}
	return c.composer.SendDirect(ctx, toID, text)
}

// SendGroup sends text to every member of groupID.
func (c *Client) SendGroup(ctx context.Context, groupID int64, text string) error {
	if !c.isStarted() {
		return ErrNotStarted
	}
	return c.composer.SendGroup(ctx, groupID, text)
}

// Send sends text to the conversation identified by key.
func (c *Client) Send(ctx context.Context, key chat.Key, text string) error {
	if !c.isStarted() {
		return ErrNotStarted
	}
	return c.composer.Send(ctx, key, text)
}

// OpenConversation shows a surface for key.
func (c *Client) OpenConversation(key chat.Key) error {
	return c.do(func(r *chat.Router) bool { return r.OpenConversation(key) })
}

// CloseConversation hides the surface for key. History is kept.
func (c *Client) CloseConversation(key chat.Key) error {
	return c.do(func(r *chat.Router) bool { return r.CloseConversation(key) })
}

func (c *Client) isStarted() bool {
	select {
	case <-c.started:
		return true
	default:
		return false
	}
}

// currentConn sends through whichever connection is current at call time.
type currentConn struct {
	c *Client
}

func (s currentConn) Send(ctx context.Context, payload []byte) error {
	s.c.connMu.Lock()
	conn := s.c.conn
	s.c.connMu.Unlock()
	if conn == nil {
		return &transport.Error{Op: "send", Err: transport.ErrNotOpen}
	}
	return conn.Send(ctx, payload)
}
