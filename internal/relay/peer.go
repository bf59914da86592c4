package relay

import (
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/omochice/dock-chat/pkg/protocol"
)

// handleClient reads frames from one socket until it closes.
func (s *Server) handleClient(conn *websocket.Conn, p *peer, user User) {
	defer s.wg.Done()
	defer func() {
		s.hub.unregister(p)
		close(p.outgoing)
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		s.metrics.Transition("disconnected")
		s.log.Info("user disconnected", zap.Int64("user", user.ID))
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for data := range p.outgoing {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("failed to write frame", zap.Int64("user", user.ID), zap.Error(err))
				_ = conn.Close()
				for range p.outgoing {
				}
				return
			}
		}
	}()

	conn.SetReadLimit(protocol.MaxFrameSize)
	limiter := rate.NewLimiter(s.rate, s.burst)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket error", zap.Int64("user", user.ID), zap.Error(err))
			}
			return
		}

		if !limiter.Allow() {
			s.metrics.Dropped("rate_limited")
			s.reject(p, "rate limit exceeded")
			continue
		}

		out, err := protocol.DecodeOutbound(data)
		if err != nil {
			s.metrics.Dropped("malformed")
			s.reject(p, "invalid message")
			continue
		}
		s.metrics.Received(out.Type.String())

		out.Text = strings.TrimSpace(out.Text)
		if out.Text == "" {
			s.reject(p, "text required")
			continue
		}

		switch out.Type {
		case protocol.FrameDirectSend:
			s.direct(p, user, out)
		case protocol.FrameGroupSend:
			s.group(p, user, out)
		default:
			s.metrics.Dropped("unsupported_type")
			s.reject(p, "unsupported type")
		}
	}
}

// direct delivers a dm_new to the recipient and echoes it to the sender.
func (s *Server) direct(p *peer, from User, out protocol.Outbound) {
	if out.ToUserID <= 0 {
		s.reject(p, "to_user_id required")
		return
	}
	if !s.roster.CanMessage(from.ID, out.ToUserID) {
		s.reject(p, "dm not allowed")
		return
	}

	frame := protocol.Inbound{
		Type:       protocol.FrameDirectNew,
		FromUserID: from.ID,
		ToUserID:   out.ToUserID,
		Text:       out.Text,
		CreatedAt:  s.timestamp(),
	}
	s.deliver(frame, []int64{out.ToUserID, from.ID})
}

// group delivers a group_new to every member, the sender included.
func (s *Server) group(p *peer, from User, out protocol.Outbound) {
	if out.GroupID <= 0 {
		s.reject(p, "group_id required")
		return
	}
	members, ok := s.roster.Members(out.GroupID)
	if !ok || !slices.Contains(members, from.ID) {
		s.reject(p, "not a member")
		return
	}

	frame := protocol.Inbound{
		Type:       protocol.FrameGroupNew,
		FromUserID: from.ID,
		GroupID:    out.GroupID,
		Text:       out.Text,
		CreatedAt:  s.timestamp(),
	}
	s.deliver(frame, members)
}

func (s *Server) deliver(frame protocol.Inbound, recipients []int64) {
	data, err := frame.Encode()
	if err != nil {
		s.log.Error("failed to encode frame", zap.Error(err))
		return
	}
	for _, id := range recipients {
		if s.hub.sendTo(id, data) > 0 {
			s.metrics.Sent(frame.Type.String())
		}
	}
}

// reject answers the sending socket with an error frame.
func (s *Server) reject(p *peer, msg string) {
	data, err := protocol.Inbound{Type: protocol.FrameError, Message: msg}.Encode()
	if err != nil {
		return
	}
	select {
	case p.outgoing <- data:
		s.metrics.Sent(protocol.FrameError.String())
	default:
	}
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
