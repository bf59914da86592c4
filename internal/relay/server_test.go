package relay_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/dock-chat/internal/relay"
	"github.com/omochice/dock-chat/pkg/protocol"
)

var fixed = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newRelay(t *testing.T, opts ...relay.Option) (*relay.Server, *httptest.Server) {
	t.Helper()
	opts = append([]relay.Option{relay.WithClock(func() time.Time { return fixed })}, opts...)
	s := relay.NewServer(":0", testRoster(t), opts...)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hs.Close()
		s.Stop()
	})
	return s, hs
}

func get(t *testing.T, url, session string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if session != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: session})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func dial(t *testing.T, hs *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/api/ws"
	header := http.Header{}
	header.Set("Cookie", "sid="+session)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) protocol.Inbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	in, err := protocol.DecodeInbound(data)
	require.NoError(t, err)
	return in
}

func waitClients(t *testing.T, s *relay.Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ClientCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_Me(t *testing.T) {
	_, hs := newRelay(t)

	code, body := get(t, hs.URL+"/api/me", "s-10")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"id":10,"first_name":"Mei","last_name":"Sato"}`, body)

	code, _ = get(t, hs.URL+"/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = get(t, hs.URL+"/api/me", "forged")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestServer_FollowLists(t *testing.T) {
	_, hs := newRelay(t)

	code, body := get(t, hs.URL+"/api/users/7/following", "s-10")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Users []struct {
			ID int64 `json:"id"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	assert.Len(t, list.Users, 2)

	code, body = get(t, hs.URL+"/api/users/5/following", "s-10")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"users":[]}`, body)

	code, _ = get(t, hs.URL+"/api/users/99/followers", "s-10")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_WebSocketRequiresSession(t *testing.T) {
	_, hs := newRelay(t)

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_DirectMessage(t *testing.T) {
	s, hs := newRelay(t)
	mei := dial(t, hs, "s-10")
	ken := dial(t, hs, "s-7")
	waitClients(t, s, 2)

	require.NoError(t, mei.WriteMessage(websocket.TextMessage, []byte(`{"type":"dm_send","to_user_id":7,"text":" hi "}`)))

	want := protocol.Inbound{
		Type:       protocol.FrameDirectNew,
		FromUserID: 10,
		ToUserID:   7,
		Text:       "hi",
		CreatedAt:  "2024-05-01T10:00:00Z",
	}
	assert.Equal(t, want, read(t, ken))
	assert.Equal(t, want, read(t, mei))
}

func TestServer_GroupMessage(t *testing.T) {
	s, hs := newRelay(t)
	mei := dial(t, hs, "s-10")
	ken := dial(t, hs, "s-7")
	aya := dial(t, hs, "s-5")
	waitClients(t, s, 3)

	require.NoError(t, ken.WriteMessage(websocket.TextMessage, []byte(`{"type":"group_send","group_id":3,"text":"team"}`)))

	for _, conn := range []*websocket.Conn{mei, ken} {
		in := read(t, conn)
		assert.Equal(t, protocol.FrameGroupNew, in.Type)
		assert.Equal(t, int64(3), in.GroupID)
		assert.Equal(t, int64(7), in.FromUserID)
	}

	// Aya is not a member.
	require.NoError(t, aya.WriteMessage(websocket.TextMessage, []byte(`{"type":"group_send","group_id":3,"text":"let me in"}`)))
	in := read(t, aya)
	assert.Equal(t, protocol.FrameError, in.Type)
	assert.Equal(t, "not a member", in.Message)
}

func TestServer_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"malformed", `{`, "invalid message"},
		{"unsupported type", `{"type":"typing","text":"..."}`, "unsupported type"},
		{"blank text", `{"type":"dm_send","to_user_id":7,"text":"  "}`, "text required"},
		{"missing recipient", `{"type":"dm_send","text":"hi"}`, "to_user_id required"},
		{"unknown recipient", `{"type":"dm_send","to_user_id":99,"text":"hi"}`, "dm not allowed"},
		{"no follow either way", `{"type":"dm_send","to_user_id":5,"text":"hi"}`, "dm not allowed"},
		{"missing group", `{"type":"group_send","text":"hi"}`, "group_id required"},
		{"unknown group", `{"type":"group_send","group_id":42,"text":"hi"}`, "not a member"},
	}
	s, hs := newRelay(t)
	mei := dial(t, hs, "s-10")
	waitClients(t, s, 1)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, mei.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			in := read(t, mei)
			assert.Equal(t, protocol.FrameError, in.Type)
			assert.Equal(t, tt.want, in.Message)
		})
	}
}

func TestServer_RateLimit(t *testing.T) {
	s, hs := newRelay(t, relay.WithRateLimit(0.001, 1))
	mei := dial(t, hs, "s-10")
	waitClients(t, s, 1)

	frame := []byte(`{"type":"dm_send","to_user_id":7,"text":"hello"}`)
	require.NoError(t, mei.WriteMessage(websocket.TextMessage, frame))
	require.NoError(t, mei.WriteMessage(websocket.TextMessage, frame))

	assert.Equal(t, protocol.FrameDirectNew, read(t, mei).Type)
	in := read(t, mei)
	assert.Equal(t, protocol.FrameError, in.Type)
	assert.Equal(t, "rate limit exceeded", in.Message)
}

func TestServer_Metrics(t *testing.T) {
	s, hs := newRelay(t)
	dial(t, hs, "s-10")
	waitClients(t, s, 1)

	code, body := get(t, hs.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `dock_connection_transitions_total{state="connected"} 1`)
}

func TestServer_StartStop(t *testing.T) {
	s := relay.NewServer("127.0.0.1:0", testRoster(t))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not start")
	}
	assert.NotEmpty(t, s.Addr())

	code, _ := get(t, "http://"+s.Addr()+"/api/me", "s-5")
	assert.Equal(t, http.StatusOK, code)

	s.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
