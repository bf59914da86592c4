package chat

import "github.com/omochice/dock-chat/pkg/protocol"

// Snapshot is an immutable copy of the messaging state, handed to renderers.
type Snapshot struct {
	SelfID        int64
	Status        string
	Surfaces      []Key
	Conversations map[Key][]Message
	Feed          []protocol.Inbound
	LastError     string
	ConnError     string
}

// Conversation returns the messages for key, newest first.
func (s Snapshot) Conversation(key Key) []Message {
	return s.Conversations[key]
}
