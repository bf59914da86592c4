package chat

import "github.com/omochice/dock-chat/pkg/protocol"

// Store maps conversation keys to their message logs and keeps the generic
// activity feed. Conversations are created lazily and never removed.
//
// Logs are kept in arrival order internally and returned newest-first.
type Store struct {
	convs map[Key][]Message
	feed  []protocol.Inbound
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{convs: make(map[Key][]Message)}
}

// Ensure creates an empty conversation for key if none exists and reports
// whether it did.
func (s *Store) Ensure(key Key) bool {
	if _, ok := s.convs[key]; ok {
		return false
	}
	s.convs[key] = nil
	return true
}

// Prepend records m as the newest message of the conversation for key.
func (s *Store) Prepend(key Key, m Message) {
	s.convs[key] = append(s.convs[key], m)
}

// Has reports whether a conversation exists for key.
func (s *Store) Has(key Key) bool {
	_, ok := s.convs[key]
	return ok
}

// Messages returns a copy of the conversation, newest first.
func (s *Store) Messages(key Key) []Message {
	log := s.convs[key]
	out := make([]Message, len(log))
	for i, m := range log {
		out[len(log)-1-i] = m
	}
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	return len(s.convs)
}

// Keys returns every conversation key in unspecified order.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.convs))
	for k := range s.convs {
		keys = append(keys, k)
	}
	return keys
}

// PrependFeed records a frame as the newest entry of the activity feed.
func (s *Store) PrependFeed(in protocol.Inbound) {
	s.feed = append(s.feed, in)
}

// Feed returns a copy of the activity feed, newest first.
func (s *Store) Feed() []protocol.Inbound {
	out := make([]protocol.Inbound, len(s.feed))
	for i, in := range s.feed {
		out[len(s.feed)-1-i] = in
	}
	return out
}
