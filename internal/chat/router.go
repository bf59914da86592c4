package chat

import (
	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/logging"
	"github.com/omochice/dock-chat/internal/metrics"
	"github.com/omochice/dock-chat/pkg/protocol"
)

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) { r.log = logging.OrNop(l) }
}

// WithMetrics records routed and dropped frames in m.
func WithMetrics(m *metrics.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithMaxSurfaces bounds the number of open surfaces; 0 means unbounded.
func WithMaxSurfaces(n int) RouterOption {
	return func(r *Router) { r.surfaces = NewRegistry(n) }
}

// WithDedupe drops frames whose content repeats an earlier routed frame.
func WithDedupe(enabled bool) RouterOption {
	return func(r *Router) {
		if enabled {
			r.dedupe = newDedupe()
		} else {
			r.dedupe = nil
		}
	}
}

// Router applies inbound frames to the Store and Registry. It is not safe for
// concurrent use: frames must be routed one at a time, in arrival order, by
// the single owner of the state.
type Router struct {
	self     int64
	store    *Store
	surfaces *Registry
	dedupe   *dedupe
	seq      uint64
	lastErr  string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewRouter creates a Router for the user identified by selfID.
func NewRouter(selfID int64, opts ...RouterOption) *Router {
	r := &Router{
		self:     selfID,
		store:    NewStore(),
		surfaces: NewRegistry(0),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SelfID returns the id of the signed-in user.
func (r *Router) SelfID() int64 {
	return r.self
}

// Route decodes and routes one raw frame. Malformed frames are dropped.
// It reports whether the state changed.
func (r *Router) Route(data []byte) bool {
	in, err := protocol.DecodeInbound(data)
	if err != nil {
		r.log.Debug("dropping malformed frame", zap.Error(err), zap.Int("size", len(data)))
		r.metrics.Dropped("malformed")
		return false
	}
	return r.RouteFrame(in)
}

// RouteFrame routes one decoded frame and reports whether the state changed.
func (r *Router) RouteFrame(in protocol.Inbound) bool {
	r.metrics.Received(in.Type.String())

	switch in.Type {
	case protocol.FrameDirectNew:
		other := in.FromUserID
		if other == r.self {
			other = in.ToUserID
		}
		if other <= 0 {
			r.metrics.Dropped("no_counterpart")
			return false
		}
		if r.duplicate(in) {
			return false
		}
		r.seq++
		r.deliver(DirectKey(other), directMessage(in, r.seq))
		return true

	case protocol.FrameGroupNew:
		if in.GroupID <= 0 {
			r.metrics.Dropped("no_group")
			return false
		}
		if r.duplicate(in) {
			return false
		}
		r.seq++
		r.deliver(GroupKey(in.GroupID), groupMessage(in, r.seq))
		return true

	case protocol.FrameError:
		r.log.Warn("server reported an error", zap.String("message", in.Message))
		r.lastErr = in.Message
		r.store.PrependFeed(in)
		return true

	default:
		r.store.PrependFeed(in)
		return true
	}
}

// OpenConversation shows a surface for key, creating an empty conversation
// when needed. Opening an open surface changes nothing.
func (r *Router) OpenConversation(key Key) bool {
	created := r.store.Ensure(key)
	if r.surfaces.Contains(key) {
		return created
	}
	r.openSurface(key, false)
	return true
}

// CloseConversation hides the surface for key. History is kept.
func (r *Router) CloseConversation(key Key) bool {
	closed := r.surfaces.Close(key)
	if closed {
		r.metrics.Surfaces(r.surfaces.Len())
	}
	return closed
}

// Surfaces returns the open keys, most recently activated first.
func (r *Router) Surfaces() []Key {
	return r.surfaces.List()
}

// Messages returns the conversation for key, newest first.
func (r *Router) Messages(key Key) []Message {
	return r.store.Messages(key)
}

// HasConversation reports whether a conversation exists for key.
func (r *Router) HasConversation(key Key) bool {
	return r.store.Has(key)
}

// Feed returns the activity feed, newest first.
func (r *Router) Feed() []protocol.Inbound {
	return r.store.Feed()
}

// Snapshot copies the current state.
func (r *Router) Snapshot() Snapshot {
	convs := make(map[Key][]Message, r.store.Len())
	for _, k := range r.store.Keys() {
		convs[k] = r.store.Messages(k)
	}
	return Snapshot{
		SelfID:        r.self,
		Surfaces:      r.surfaces.List(),
		Conversations: convs,
		Feed:          r.store.Feed(),
		LastError:     r.lastErr,
	}
}

func (r *Router) deliver(key Key, m Message) {
	r.store.Prepend(key, m)
	r.openSurface(key, true)
}

func (r *Router) openSurface(key Key, activate bool) {
	var (
		evicted Key
		ok      bool
	)
	if activate {
		evicted, ok = r.surfaces.Activate(key)
	} else {
		evicted, ok = r.surfaces.Open(key)
	}
	if ok {
		r.log.Debug("surface evicted", zap.Stringer("key", evicted), zap.Int("max", r.surfaces.Max()))
	}
	r.metrics.Surfaces(r.surfaces.Len())
}

func (r *Router) duplicate(in protocol.Inbound) bool {
	if r.dedupe == nil || !r.dedupe.Seen(in) {
		return false
	}
	r.log.Debug("dropping duplicate frame", zap.Stringer("type", in.Type))
	r.metrics.Dropped("duplicate")
	return true
}
