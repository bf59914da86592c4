package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omochice/dock-chat/internal/chat"
	"github.com/omochice/dock-chat/pkg/protocol"
)

func TestStore_EnsureAndPrepend(t *testing.T) {
	s := chat.NewStore()
	key := chat.DirectKey(3)

	assert.False(t, s.Has(key))
	assert.True(t, s.Ensure(key))
	assert.False(t, s.Ensure(key))
	assert.Empty(t, s.Messages(key))

	s.Prepend(key, chat.Message{Text: "old"})
	s.Prepend(key, chat.Message{Text: "new"})

	assert.Equal(t, []string{"new", "old"}, texts(s.Messages(key)))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []chat.Key{key}, s.Keys())
}

func TestStore_Feed(t *testing.T) {
	s := chat.NewStore()
	s.PrependFeed(protocol.Inbound{Type: "a"})
	s.PrependFeed(protocol.Inbound{Type: "b"})

	feed := s.Feed()
	assert.Equal(t, protocol.FrameType("b"), feed[0].Type)
	assert.Equal(t, protocol.FrameType("a"), feed[1].Type)
}
