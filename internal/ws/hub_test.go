package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

type envelope struct {
	Type         string          `json:"type"`
	Event        string          `json:"event"`
	ConnectionID string          `json:"connectionId"`
	Group        string          `json:"group"`
	AckID        uint64          `json:"ackId"`
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data"`
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub, err := NewHub("test", func(g string) bool { return g == "sess-1" || g == "sess-2" }, zap.NewNop())
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string, protocols ...string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	d := websocket.Dialer{Subprotocols: protocols, HandshakeTimeout: 2 * time.Second}
	conn, _, err := d.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func TestHub_PublishToSessionGroup(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "?session=sess-1")

	if env := readJSON(t, conn); env.Event != "connected" || env.ConnectionID == "" {
		t.Fatalf("expected connected message, got %+v", env)
	}

	if err := hub.Publish("sess-1", map[string]string{"state": "rendered"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	env := readJSON(t, conn)
	if env.Type != "message" || env.Group != "sess-1" || string(env.Data) != `{"state":"rendered"}` {
		t.Errorf("unexpected data message: %+v (%s)", env, env.Data)
	}

	groups := hub.GetActiveGroups()
	if len(groups) != 1 || groups[0] != "sess-1" {
		t.Errorf("unexpected active groups: %v", groups)
	}
	if hub.Followers("sess-1") != 1 || hub.Followers("sess-2") != 0 || hub.Clients() != 1 {
		t.Errorf("unexpected counts: followers=%d clients=%d", hub.Followers("sess-1"), hub.Clients())
	}
}

func TestHub_ZstdProtocol(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "?session=sess-2", ProtocolZstd)
	if conn.Subprotocol() != ProtocolZstd {
		t.Fatalf("expected %s, got %q", ProtocolZstd, conn.Subprotocol())
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	read := func() envelope {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if kind != websocket.BinaryMessage {
			t.Fatalf("expected binary frame, got %d", kind)
		}
		plain, err := dec.DecodeAll(data, nil)
		if err != nil {
			t.Fatalf("decompress: %v", err)
		}
		var env envelope
		if err := json.Unmarshal(plain, &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return env
	}

	if env := read(); env.Event != "connected" {
		t.Fatalf("expected connected message, got %+v", env)
	}
	if err := hub.Publish("sess-2", map[string]int{"cycle": 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if env := read(); string(env.Data) != `{"cycle":3}` {
		t.Errorf("unexpected payload %s", env.Data)
	}
}

func TestHub_JoinGroupAck(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv, "")
	readJSON(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"joinGroup","group":"nope","ackId":1}`))
	if env := readJSON(t, conn); env.Type != "ack" || env.AckID != 1 || env.Success {
		t.Errorf("expected failed ack, got %+v", env)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"joinGroup","group":"sess-1","ackId":2}`))
	if env := readJSON(t, conn); env.AckID != 2 || !env.Success {
		t.Errorf("expected successful ack, got %+v", env)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
	if env := readJSON(t, conn); env.Type != "pong" {
		t.Errorf("expected pong, got %+v", env)
	}
}

func TestHub_UnknownSessionRejected(t *testing.T) {
	_, srv := startHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %v", resp)
	}
}

func TestHub_PublishAfterShutdown(t *testing.T) {
	hub, err := NewHub("test", nil, zap.NewNop())
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn := dial(t, srv, "?session=sess-1")
	readJSON(t, conn)

	cancel()
	<-stopped

	if err := hub.Publish("sess-1", map[string]string{"state": "rendered"}); err != nil {
		t.Fatalf("publish after shutdown: %v", err)
	}
	if groups := hub.GetActiveGroups(); len(groups) != 0 {
		t.Errorf("expected no groups after shutdown, got %v", groups)
	}
}

func TestParseRequest(t *testing.T) {
	req, err := parseRequest([]byte(`{"type":"leaveGroup","group":"sess-1","ackId":7}`))
	if err != nil || req.Group != "sess-1" || req.AckID == nil || *req.AckID != 7 {
		t.Errorf("unexpected request %+v (%v)", req, err)
	}
	for _, raw := range []string{`{"type":"subscribe"}`, `not json`} {
		if _, err := parseRequest([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", raw)
		}
	}
}
