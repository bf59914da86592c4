// Package protocol defines the JSON frames exchanged with the messaging server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxFrameSize is the largest frame, in bytes, either side accepts.
const MaxFrameSize = 4096

// FrameType represents the "type" tag carried by every frame.
type FrameType string

const (
	FrameDirectNew  FrameType = "dm_new"
	FrameGroupNew   FrameType = "group_new"
	FrameError      FrameType = "error"
	FrameDirectSend FrameType = "dm_send"
	FrameGroupSend  FrameType = "group_send"
)

// String returns the wire representation of the FrameType.
func (ft FrameType) String() string {
	return string(ft)
}

// ErrMalformedFrame is returned for inbound data that is not a JSON object
// carrying a non-empty "type".
var ErrMalformedFrame = errors.New("malformed frame")

// Inbound is a decoded server-to-client frame. Fields a given type does not
// use are left at their zero value; a zero id means the field was absent.
type Inbound struct {
	Type       FrameType `json:"type"`
	FromUserID int64     `json:"from_user_id,omitempty"`
	ToUserID   int64     `json:"to_user_id,omitempty"`
	GroupID    int64     `json:"group_id,omitempty"`
	Text       string    `json:"text,omitempty"`
	CreatedAt  string    `json:"created_at,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// DecodeInbound decodes one inbound frame.
// Unknown types decode successfully; classification is the caller's job.
func DecodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if strings.TrimSpace(string(in.Type)) == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return in, nil
}

// Encode encodes the inbound frame. It is used by servers and tests that
// play the server side of the connection.
func (in Inbound) Encode() ([]byte, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// DirectSend asks the server to deliver a direct message.
type DirectSend struct {
	ToUserID int64  `json:"to_user_id"`
	Text     string `json:"text"`
}

// GroupSend asks the server to deliver a message to every member of a group.
type GroupSend struct {
	GroupID int64  `json:"group_id"`
	Text    string `json:"text"`
}

// Encode encodes the frame with its "dm_send" tag.
func (m DirectSend) Encode() ([]byte, error) {
	return encodeTagged(FrameDirectSend, struct {
		Type FrameType `json:"type"`
		DirectSend
	}{FrameDirectSend, m})
}

// Encode encodes the frame with its "group_send" tag.
func (m GroupSend) Encode() ([]byte, error) {
	return encodeTagged(FrameGroupSend, struct {
		Type FrameType `json:"type"`
		GroupSend
	}{FrameGroupSend, m})
}

// Outbound is a client-to-server frame as seen by the server.
type Outbound struct {
	Type     FrameType `json:"type"`
	ToUserID int64     `json:"to_user_id,omitempty"`
	GroupID  int64     `json:"group_id,omitempty"`
	Text     string    `json:"text"`
}

// DecodeOutbound decodes a client-to-server frame.
func DecodeOutbound(data []byte) (Outbound, error) {
	var out Outbound
	if err := json.Unmarshal(data, &out); err != nil {
		return Outbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return out, nil
}

func encodeTagged(ft FrameType, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", ft, err)
	}
	return data, nil
}
