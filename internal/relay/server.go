// Package relay is a small development server speaking the messaging
// protocol: it authenticates users from a YAML roster, serves the REST
// directory endpoints and routes direct and group messages between sockets.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/omochice/dock-chat/internal/directory"
	"github.com/omochice/dock-chat/internal/logging"
	"github.com/omochice/dock-chat/internal/metrics"
	"github.com/omochice/dock-chat/internal/transport"
)

const (
	DefaultRate  = 20
	DefaultBurst = 40

	peerQueue = 32
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = logging.OrNop(l) }
}

// WithRateLimit limits inbound frames per connection to r per second with
// the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(s *Server) {
		if r > 0 {
			s.rate = rate.Limit(r)
		}
		if burst > 0 {
			s.burst = burst
		}
	}
}

// WithClock overrides the timestamp source for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the relay. Use Handler with an existing http.Server, or Start.
type Server struct {
	address  string
	roster   *Roster
	hub      *Hub
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	rate     rate.Limit
	burst    int
	now      func() time.Time
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	conns    map[*websocket.Conn]struct{}
	ready    chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer creates a relay listening on address once started.
func NewServer(address string, roster *Roster, opts ...Option) *Server {
	s := &Server{
		address:  address,
		roster:   roster,
		log:      zap.NewNop(),
		registry: prometheus.NewRegistry(),
		rate:     DefaultRate,
		burst:    DefaultBurst,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
		ready: make(chan struct{}),
		quit:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = metrics.New(s.registry)
	s.hub = newHub(s.log)
	return s
}

// Handler returns the HTTP routes of the relay.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/me", s.authenticated(s.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/followers", s.authenticated(s.handleFollowers)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/following", s.authenticated(s.handleFollowing)).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.authenticated(s.handleWebSocket))
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.server
	s.mu.Unlock()
	close(s.ready)

	s.log.Info("relay started", zap.String("addr", listener.Addr().String()))

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay stopped: %w", err)
	}
	return nil
}

// Ready is closed once Start is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop closes the listener and every open socket, then waits for handlers.
func (s *Server) Stop() {
	s.quitOnce.Do(func() {
		close(s.quit)

		s.mu.Lock()
		srv := s.server
		conns := make([]*websocket.Conn, 0, len(s.conns))
		for conn := range s.conns {
			conns = append(conns, conn)
		}
		s.mu.Unlock()

		if srv != nil {
			_ = srv.Close()
		}
		for _, conn := range conns {
			_ = conn.Close()
		}
	})
	s.wg.Wait()
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected sockets.
func (s *Server) ClientCount() int {
	return s.hub.Count()
}

// authenticated resolves the session cookie to a roster user.
func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(transport.SessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		user, ok := s.roster.BySession(cookie.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown session")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user User) {
	writeJSON(w, http.StatusOK, user.Counterpart())
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request, _ User) {
	s.writeUsers(w, r, s.roster.Followers)
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request, _ User) {
	s.writeUsers(w, r, s.roster.Following)
}

func (s *Server) writeUsers(w http.ResponseWriter, r *http.Request, list func(int64) []directory.Counterpart) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if _, ok := s.roster.User(id); !ok {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	users := list(id)
	if users == nil {
		users = []directory.Counterpart{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, user User) {
	select {
	case <-s.quit:
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	p := &peer{userID: user.ID, outgoing: make(chan []byte, peerQueue)}
	s.hub.register(p)
	s.metrics.Transition("connected")
	s.log.Info("user connected", zap.Int64("user", user.ID), zap.String("remote", conn.RemoteAddr().String()))

	go s.handleClient(conn, p, user)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
