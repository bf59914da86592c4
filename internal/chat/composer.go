package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/logging"
	"github.com/omochice/dock-chat/internal/metrics"
	"github.com/omochice/dock-chat/pkg/protocol"
)

// ErrEmptyText is returned when the text is blank after trimming. Nothing is
// sent; callers treat it as "not sent" rather than as a failure to report.
var ErrEmptyText = errors.New("message text is empty")

// Sender delivers one encoded frame to the server.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Composer turns send actions into outbound frames. It never records the
// message locally: the sender sees it once the server echoes it back.
type Composer struct {
	sender  Sender
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewComposer creates a Composer writing to sender. log and m may be nil.
func NewComposer(sender Sender, log *zap.Logger, m *metrics.Metrics) *Composer {
	return &Composer{sender: sender, log: logging.OrNop(log), metrics: m}
}

// SendDirect sends text to the user toID.
func (c *Composer) SendDirect(ctx context.Context, toID int64, text string) error {
	text, err := validate(text)
	if err != nil {
		c.log.Debug("rejected blank direct message", zap.Int64("to", toID))
		return err
	}
	payload, err := protocol.DirectSend{ToUserID: toID, Text: text}.Encode()
	if err != nil {
		return err
	}
	return c.send(ctx, protocol.FrameDirectSend, payload)
}

// SendGroup sends text to every member of groupID.
func (c *Composer) SendGroup(ctx context.Context, groupID int64, text string) error {
	text, err := validate(text)
	if err != nil {
		c.log.Debug("rejected blank group message", zap.Int64("group", groupID))
		return err
	}
	payload, err := protocol.GroupSend{GroupID: groupID, Text: text}.Encode()
	if err != nil {
		return err
	}
	return c.send(ctx, protocol.FrameGroupSend, payload)
}

// Send dispatches on the key kind.
func (c *Composer) Send(ctx context.Context, key Key, text string) error {
	switch key.Kind {
	case KindDirect:
		return c.SendDirect(ctx, key.ID, text)
	case KindGroup:
		return c.SendGroup(ctx, key.ID, text)
	default:
		return fmt.Errorf("unknown conversation kind %d", key.Kind)
	}
}

func (c *Composer) send(ctx context.Context, ft protocol.FrameType, payload []byte) error {
	if err := c.sender.Send(ctx, payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", ft, err)
	}
	c.metrics.Sent(ft.String())
	return nil
}

func validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
