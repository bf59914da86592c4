package transport

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/logging"
	"github.com/omochice/dock-chat/internal/metrics"
)

const frameBuffer = 64

// StatusFunc observes state transitions. err is non-nil only for StatusErrored.
type StatusFunc func(status Status, err error)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Connection) { c.log = logging.OrNop(l) }
}

// WithStatusFunc registers the status observer.
func WithStatusFunc(fn StatusFunc) Option {
	return func(c *Connection) { c.onStatus = fn }
}

// WithMetrics records transitions in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connection) { c.metrics = m }
}

// Connection is one attempt at a persistent connection. It is opened at most
// once; after Closed or Errored the owner creates a new Connection.
type Connection struct {
	id       string
	dialer   Dialer
	endpoint string
	log      *zap.Logger
	metrics  *metrics.Metrics
	onStatus StatusFunc

	mu      sync.Mutex
	status  Status
	opened  bool
	conn    Conn
	writeMu sync.Mutex

	frames     chan []byte
	framesOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Connection to endpoint in the Connecting state. Nothing is
// dialed until Open.
func New(dialer Dialer, endpoint string, opts ...Option) *Connection {
	c := &Connection{
		id:       uuid.NewString(),
		dialer:   dialer,
		endpoint: endpoint,
		log:      zap.NewNop(),
		status:   StatusConnecting,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("conn_id", c.id), zap.String("endpoint", endpoint))
	c.frames = make(chan []byte, frameBuffer)
	return c
}

// ID returns the identifier used in logs for this connection.
func (c *Connection) ID() string {
	return c.id
}

// Open dials the endpoint and starts delivering inbound frames. On failure
// the connection becomes Errored and the error is a *Error.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.opened || c.status.Terminal() {
		c.mu.Unlock()
		return &Error{Op: "open", Err: ErrAlreadyOpened}
	}
	c.opened = true
	c.mu.Unlock()

	c.notify(StatusConnecting, nil)

	conn, err := c.dialer.Dial(ctx, c.endpoint)
	if err != nil {
		terr := &Error{Op: "open", Err: err}
		c.transition(StatusErrored, terr)
		c.closeFrames()
		return terr
	}

	readCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.status.Terminal() {
		// Closed while dialing.
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		c.closeFrames()
		return &Error{Op: "open", Err: ErrNotOpen}
	}
	c.conn = conn
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	c.transition(StatusOpen, nil)
	go c.readLoop(readCtx, conn)
	return nil
}

// Status returns the current state.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Frames returns the inbound frame sequence. It is meant for exactly one
// consumer and is closed when the connection ends.
func (c *Connection) Frames() <-chan []byte {
	return c.frames
}

// Send writes one frame. It fails with a *Error wrapping ErrNotOpen unless
// the connection is Open.
func (c *Connection) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	conn, status := c.conn, c.status
	c.mu.Unlock()

	if status != StatusOpen || conn == nil {
		return &Error{Op: "send", Err: ErrNotOpen}
	}

	c.writeMu.Lock()
	err := conn.Write(ctx, payload)
	c.writeMu.Unlock()
	if err != nil {
		return &Error{Op: "send", Err: err}
	}
	return nil
}

// Close releases the connection. It is idempotent and safe on every exit
// path, including a connection that was never opened or already errored.
func (c *Connection) Close() error {
	var err error
	c.doneOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn, cancel := c.conn, c.cancel
		c.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		}
		if cancel != nil {
			cancel()
		}
	})
	c.wg.Wait()
	c.transition(StatusClosed, nil)
	c.closeFrames()
	return err
}

func (c *Connection) readLoop(ctx context.Context, conn Conn) {
	defer c.wg.Done()
	defer c.closeFrames()

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-c.done:
				c.transition(StatusClosed, nil)
				return
			default:
			}
			_ = conn.Close()
			if errors.Is(err, io.EOF) {
				c.log.Info("connection closed by server")
				c.transition(StatusClosed, nil)
			} else {
				c.transition(StatusErrored, &Error{Op: "read", Err: err})
			}
			return
		}

		select {
		case c.frames <- data:
		case <-c.done:
			c.transition(StatusClosed, nil)
			return
		}
	}
}

// transition moves to next unless the current state is terminal.
func (c *Connection) transition(next Status, err error) {
	c.mu.Lock()
	if c.status.Terminal() || c.status == next {
		c.mu.Unlock()
		return
	}
	c.status = next
	c.mu.Unlock()

	c.notify(next, err)
}

func (c *Connection) notify(status Status, err error) {
	if err != nil {
		c.log.Warn("connection state changed", zap.Stringer("status", status), zap.Error(err))
	} else {
		c.log.Debug("connection state changed", zap.Stringer("status", status))
	}
	c.metrics.Transition(status.String())
	if c.onStatus != nil {
		c.onStatus(status, err)
	}
}

func (c *Connection) closeFrames() {
	c.framesOnce.Do(func() { close(c.frames) })
}
