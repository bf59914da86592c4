package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/dock-chat/pkg/protocol"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    protocol.Inbound
		wantErr bool
	}{
		{
			name: "direct message",
			data: `{"type":"dm_new","from_user_id":7,"to_user_id":10,"text":"hi","created_at":"2024-01-01T00:00:00Z"}`,
			want: protocol.Inbound{
				Type:       protocol.FrameDirectNew,
				FromUserID: 7,
				ToUserID:   10,
				Text:       "hi",
				CreatedAt:  "2024-01-01T00:00:00Z",
			},
		},
		{
			name: "group message",
			data: `{"type":"group_new","from_user_id":3,"group_id":4,"text":"yo"}`,
			want: protocol.Inbound{Type: protocol.FrameGroupNew, FromUserID: 3, GroupID: 4, Text: "yo"},
		},
		{
			name: "server error",
			data: `{"type":"error","message":"dm not allowed"}`,
			want: protocol.Inbound{Type: protocol.FrameError, Message: "dm not allowed"},
		},
		{
			name: "unknown type is not malformed",
			data: `{"type":"notification","text":"new follower"}`,
			want: protocol.Inbound{Type: "notification", Text: "new follower"},
		},
		{name: "not json", data: `hello`, wantErr: true},
		{name: "json array", data: `[1,2]`, wantErr: true},
		{name: "missing type", data: `{"text":"hi"}`, wantErr: true},
		{name: "blank type", data: `{"type":"  "}`, wantErr: true},
		{name: "wrong field type", data: `{"type":"dm_new","from_user_id":"seven"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.DecodeInbound([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectSend_Encode(t *testing.T) {
	data, err := protocol.DirectSend{ToUserID: 7, Text: "hello"}.Encode()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"type": "dm_send", "to_user_id": float64(7), "text": "hello"}, got)
}

func TestGroupSend_Encode(t *testing.T) {
	data, err := protocol.GroupSend{GroupID: 3, Text: "hello all"}.Encode()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"type": "group_send", "group_id": float64(3), "text": "hello all"}, got)
}

func TestDecodeOutbound(t *testing.T) {
	data, err := protocol.DirectSend{ToUserID: 9, Text: "x"}.Encode()
	require.NoError(t, err)

	out, err := protocol.DecodeOutbound(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.Outbound{Type: protocol.FrameDirectSend, ToUserID: 9, Text: "x"}, out)

	_, err = protocol.DecodeOutbound([]byte("{"))
	assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
}
