package chat

import "github.com/omochice/dock-chat/pkg/protocol"

// Message is one delivered message. It is immutable once received; Seq is
// the client-side arrival order and its only identity.
type Message struct {
	Kind      Kind
	Text      string
	FromID    int64
	ToID      int64
	GroupID   int64
	CreatedAt string
	Seq       uint64
}

func directMessage(in protocol.Inbound, seq uint64) Message {
	return Message{
		Kind:      KindDirect,
		Text:      in.Text,
		FromID:    in.FromUserID,
		ToID:      in.ToUserID,
		CreatedAt: in.CreatedAt,
		Seq:       seq,
	}
}

func groupMessage(in protocol.Inbound, seq uint64) Message {
	return Message{
		Kind:      KindGroup,
		Text:      in.Text,
		FromID:    in.FromUserID,
		GroupID:   in.GroupID,
		CreatedAt: in.CreatedAt,
		Seq:       seq,
	}
}
