package chat

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/omochice/dock-chat/pkg/protocol"
)

// dedupe remembers content hashes of routed messages. It is only used when
// duplicate suppression is enabled; by default repeated deliveries are shown
// twice.
type dedupe struct {
	seen map[uint64]struct{}
}

func newDedupe() *dedupe {
	return &dedupe{seen: make(map[uint64]struct{})}
}

// Seen reports whether an identical frame was routed before and records it
// otherwise.
func (d *dedupe) Seen(in protocol.Inbound) bool {
	h := xxhash.New()
	_, _ = h.WriteString(string(in.Type))
	for _, id := range []int64{in.FromUserID, in.ToUserID, in.GroupID} {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(strconv.FormatInt(id, 10))
	}
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(in.Text)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(in.CreatedAt)

	sum := h.Sum64()
	if _, ok := d.seen[sum]; ok {
		return true
	}
	d.seen[sum] = struct{}{}
	return false
}
