package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omochice/dock-chat/internal/chat"
)

func keys(ids ...int64) []chat.Key {
	out := make([]chat.Key, len(ids))
	for i, id := range ids {
		out[i] = chat.DirectKey(id)
	}
	return out
}

func TestRegistry_Open(t *testing.T) {
	r := chat.NewRegistry(0)

	r.Open(chat.DirectKey(1))
	r.Open(chat.DirectKey(2))
	r.Open(chat.DirectKey(1))

	assert.Equal(t, keys(2, 1), r.List())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_OpenTwiceEqualsOnce(t *testing.T) {
	once := chat.NewRegistry(0)
	twice := chat.NewRegistry(0)
	for _, id := range []int64{4, 9, 2} {
		once.Open(chat.DirectKey(id))
		twice.Open(chat.DirectKey(id))
		twice.Open(chat.DirectKey(id))
	}
	assert.Equal(t, once.List(), twice.List())
}

func TestRegistry_Activate(t *testing.T) {
	tests := []struct {
		name    string
		initial []int64
		key     int64
		want    []int64
	}{
		{"insert into empty", nil, 7, []int64{7}},
		{"insert at head", []int64{5}, 7, []int64{7, 5}},
		{"move tail to head", []int64{5, 7}, 7, []int64{7, 5}},
		{"move middle to head", []int64{1, 2, 3}, 2, []int64{2, 1, 3}},
		{"head stays", []int64{1, 2, 3}, 1, []int64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chat.NewRegistry(0)
			for i := len(tt.initial) - 1; i >= 0; i-- {
				r.Open(chat.DirectKey(tt.initial[i]))
			}
			r.Activate(chat.DirectKey(tt.key))
			assert.Equal(t, keys(tt.want...), r.List())
		})
	}
}

func TestRegistry_Close(t *testing.T) {
	r := chat.NewRegistry(0)
	r.Open(chat.DirectKey(1))
	r.Open(chat.DirectKey(2))

	assert.True(t, r.Close(chat.DirectKey(1)))
	assert.False(t, r.Close(chat.DirectKey(1)))
	assert.False(t, r.Close(chat.DirectKey(42)))
	assert.Equal(t, keys(2), r.List())
	assert.False(t, r.Contains(chat.DirectKey(1)))
}

func TestRegistry_Bound(t *testing.T) {
	r := chat.NewRegistry(2)

	_, evicted := r.Open(chat.DirectKey(1))
	assert.False(t, evicted)
	r.Open(chat.DirectKey(2))
	key, evicted := r.Activate(chat.DirectKey(3))

	assert.True(t, evicted)
	assert.Equal(t, chat.DirectKey(1), key)
	assert.Equal(t, keys(3, 2), r.List())

	// Reordering within the bound evicts nothing.
	_, evicted = r.Activate(chat.DirectKey(2))
	assert.False(t, evicted)
	assert.Equal(t, keys(2, 3), r.List())
}

func TestRegistry_NegativeBoundIsUnbounded(t *testing.T) {
	r := chat.NewRegistry(-1)
	for i := int64(1); i <= 20; i++ {
		r.Open(chat.DirectKey(i))
	}
	assert.Equal(t, 20, r.Len())
	assert.Equal(t, 0, r.Max())
}

func TestRegistry_ListIsACopy(t *testing.T) {
	r := chat.NewRegistry(0)
	r.Open(chat.DirectKey(1))
	l := r.List()
	l[0] = chat.DirectKey(2)
	assert.Equal(t, keys(1), r.List())
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "direct:7", chat.DirectKey(7).String())
	assert.Equal(t, "group:3", chat.GroupKey(3).String())
	assert.Equal(t, "unknown", chat.Kind(0).String())
}
