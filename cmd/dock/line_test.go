package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/dock-chat/internal/chat"
	"github.com/omochice/dock-chat/pkg/protocol"
)

type fakeLineSession struct {
	snap       chat.Snapshot
	calls      []string
	reconnects int
}

func (f *fakeLineSession) Snapshot() chat.Snapshot { return f.snap }

func (f *fakeLineSession) SendDirect(ctx context.Context, toID int64, text string) error {
	return f.record(chat.DirectKey(toID), text)
}

func (f *fakeLineSession) SendGroup(ctx context.Context, groupID int64, text string) error {
	return f.record(chat.GroupKey(groupID), text)
}

func (f *fakeLineSession) Send(ctx context.Context, key chat.Key, text string) error {
	return f.record(key, text)
}

func (f *fakeLineSession) record(key chat.Key, text string) error {
	if strings.TrimSpace(text) == "" {
		return chat.ErrEmptyText
	}
	f.calls = append(f.calls, "send "+key.String()+" "+text)
	return nil
}

func (f *fakeLineSession) OpenConversation(key chat.Key) error {
	f.calls = append(f.calls, "open "+key.String())
	return nil
}

func (f *fakeLineSession) CloseConversation(key chat.Key) error {
	f.calls = append(f.calls, "close "+key.String())
	return nil
}

func (f *fakeLineSession) Reconnect(ctx context.Context) error {
	f.reconnects++
	return nil
}

func TestReadCommands(t *testing.T) {
	s := &fakeLineSession{snap: chat.Snapshot{Surfaces: []chat.Key{chat.DirectKey(7)}}}
	input := strings.Join([]string{
		"/dm 7 hello there",
		"/group 3 team",
		"/dm 7   ",
		"plain text",
		"/open 5",
		"/close 5",
		"/reconnect",
		"/dm x hi",
		"/wave",
		"/quit",
		"/dm 7 never sent",
	}, "\n")
	var out bytes.Buffer

	require.NoError(t, readCommands(context.Background(), s, strings.NewReader(input), &out))

	assert.Equal(t, []string{
		"send direct:7 hello there",
		"send group:3 team",
		"send direct:7 plain text",
		"open direct:5",
		"close direct:5",
	}, s.calls)
	assert.Equal(t, 1, s.reconnects)
	assert.Contains(t, out.String(), `invalid id "x"`)
	assert.Contains(t, out.String(), "unknown command /wave")
	assert.NotContains(t, out.String(), "empty")
}

func TestExecute_PlainTextWithoutSurface(t *testing.T) {
	st := &lineState{session: &fakeLineSession{}}
	err := st.execute(context.Background(), "hello")
	assert.ErrorContains(t, err, "no open conversation")
}

func TestExecute_TargetSurvivesReorder(t *testing.T) {
	s := &fakeLineSession{snap: chat.Snapshot{Surfaces: []chat.Key{chat.DirectKey(7)}}}
	st := &lineState{session: s}
	ctx := context.Background()

	require.NoError(t, st.execute(ctx, "/to 7"))
	s.snap.Surfaces = []chat.Key{chat.DirectKey(5), chat.DirectKey(7)}
	require.NoError(t, st.execute(ctx, "reply"))

	require.NoError(t, st.execute(ctx, "/to group 3"))
	require.NoError(t, st.execute(ctx, "team"))

	require.NoError(t, st.execute(ctx, "/to"))
	require.NoError(t, st.execute(ctx, "latest"))

	assert.ErrorContains(t, st.execute(ctx, "/to group"), "invalid id")
	assert.ErrorContains(t, st.execute(ctx, "/to a b c"), "usage")

	assert.Equal(t, []string{
		"send direct:7 reply",
		"send group:3 team",
		"send direct:5 latest",
	}, s.calls)
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	names := map[int64]string{7: "Ken"}
	p := &printer{out: &out, self: 10, names: func(id int64) string { return names[id] }}

	snap := chat.Snapshot{
		Status: "connected",
		Conversations: map[chat.Key][]chat.Message{
			chat.DirectKey(7): {
				{Kind: chat.KindDirect, Text: "second", FromID: 10, ToID: 7, Seq: 2},
				{Kind: chat.KindDirect, Text: "first", FromID: 7, ToID: 10, Seq: 1},
			},
			chat.GroupKey(3): {
				{Kind: chat.KindGroup, Text: "third", FromID: 7, GroupID: 3, Seq: 3},
			},
		},
		Feed: []protocol.Inbound{{Type: protocol.FrameError, Message: "nope"}},
	}
	p.print(snap)
	p.print(snap)

	assert.Equal(t, strings.Join([]string{
		"*** connected ***",
		"[Ken] Ken: first",
		"[Ken] you: second",
		"[Group 3] Ken: third",
		"*** [error] nope ***",
		"",
	}, "\n"), out.String())
}
