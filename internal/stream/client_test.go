package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// staticTokens hands out tok-1, tok-2, ... or a fixed error.
type staticTokens struct {
	calls atomic.Int32
	err   error
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "tok-" + string(rune('0'+n)), nil
}

func testConfig(server *httptest.Server) ClientConfig {
	return ClientConfig{
		URL:          wsURL(server),
		Format:       "Simple",
		PingTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   100,
	}
}

// drain keeps the server side reading until the client goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, drain)
	defer server.Close()

	client := NewClient(testConfig(server), &staticTokens{}, nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}

	if err := client.Connect(context.Background()); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Connect after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestClient_HeartbeatWithoutWriteTimeout(t *testing.T) {
	var pings atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.SetPingHandler(func(data string) error {
			pings.Add(1)
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})
		drain(conn)
	})
	defer server.Close()

	cfg := testConfig(server)
	cfg.WriteTimeout = 0
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PingTimeout = 200 * time.Millisecond

	client := NewClient(cfg, &staticTokens{}, nil)
	if client.cfg.WriteTimeout != DefaultClientConfig().WriteTimeout {
		t.Errorf("WriteTimeout = %v, want default %v", client.cfg.WriteTimeout, DefaultClientConfig().WriteTimeout)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		t.Fatalf("unexpected stream error: %v", err)
	case <-time.After(400 * time.Millisecond):
	}

	if got := pings.Load(); got < 2 {
		t.Errorf("server saw %d pings, want at least 2", got)
	}
}

func TestClient_Subscribe(t *testing.T) {
	received := make(chan map[string]any, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req map[string]any
			if err := json.Unmarshal(data, &req); err != nil {
				t.Errorf("bad request frame: %v", err)
				return
			}
			received <- req
		}
	})
	defer server.Close()

	tokens := &staticTokens{}
	client := NewClient(testConfig(server), tokens, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	guid, err := client.Subscribe(context.Background(), OrderBookRequest("MOEX", "SBER", 10))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := uuid.Parse(guid); err != nil {
		t.Errorf("guid %q is not a uuid: %v", guid, err)
	}

	select {
	case req := <-received:
		if req["opcode"] != OpOrderBookGetAndSubscribe {
			t.Errorf("opcode = %v, want %s", req["opcode"], OpOrderBookGetAndSubscribe)
		}
		if req["code"] != "SBER" || req["exchange"] != "MOEX" {
			t.Errorf("code/exchange = %v/%v", req["code"], req["exchange"])
		}
		if req["depth"] != float64(10) {
			t.Errorf("depth = %v, want 10", req["depth"])
		}
		if req["format"] != "Simple" {
			t.Errorf("format = %v, want Simple", req["format"])
		}
		if req["token"] != "tok-1" {
			t.Errorf("token = %v, want tok-1", req["token"])
		}
		if req["guid"] != guid {
			t.Errorf("guid = %v, want %s", req["guid"], guid)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the subscription")
	}

	if _, ok := client.Subscriptions()[guid]; !ok {
		t.Error("subscription not tracked")
	}

	// Each request asks the token source again.
	if _, err := client.Subscribe(context.Background(), QuotesRequest("MOEX", "GAZP")); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	select {
	case req := <-received:
		if req["token"] != "tok-2" {
			t.Errorf("token = %v, want tok-2", req["token"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the second subscription")
	}
}

func TestClient_SubscribeKeepsCallerGUID(t *testing.T) {
	server := mockWSServer(t, drain)
	defer server.Close()

	client := NewClient(testConfig(server), &staticTokens{}, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	req := BarsRequest("SPBX", "SBER", "D", time.Unix(1583928181, 0))
	req.GUID = "my-guid"
	guid, err := client.Subscribe(context.Background(), req)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if guid != "my-guid" {
		t.Errorf("guid = %q, want my-guid", guid)
	}
	if got := client.Subscriptions()["my-guid"]; got.From != 1583928181 || got.Timeframe != "D" {
		t.Errorf("tracked request = %+v", got)
	}
}

func TestClient_SubscribeErrors(t *testing.T) {
	t.Run("token failure", func(t *testing.T) {
		server := mockWSServer(t, drain)
		defer server.Close()

		tokenErr := errors.New("refresh failed")
		client := NewClient(testConfig(server), &staticTokens{err: tokenErr}, nil)
		if err := client.Connect(context.Background()); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		defer client.Close()

		if _, err := client.Subscribe(context.Background(), QuotesRequest("MOEX", "SBER")); !errors.Is(err, tokenErr) {
			t.Errorf("err = %v, want token error", err)
		}
		if len(client.Subscriptions()) != 0 {
			t.Error("failed subscription should not be tracked")
		}
	})

	t.Run("not connected", func(t *testing.T) {
		client := NewClient(DefaultClientConfig(), &staticTokens{}, nil)
		if _, err := client.Subscribe(context.Background(), QuotesRequest("MOEX", "SBER")); !errors.Is(err, ErrNotConnected) {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	})
}

func TestClient_Unsubscribe(t *testing.T) {
	received := make(chan map[string]any, 4)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req map[string]any
			json.Unmarshal(data, &req)
			received <- req
		}
	})
	defer server.Close()

	client := NewClient(testConfig(server), &staticTokens{}, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.Unsubscribe(context.Background(), "nope"); !errors.Is(err, ErrUnknownSubscription) {
		t.Errorf("err = %v, want ErrUnknownSubscription", err)
	}

	guid, err := client.Subscribe(context.Background(), QuotesRequest("MOEX", "SBER"))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	<-received

	if err := client.Unsubscribe(context.Background(), guid); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	select {
	case req := <-received:
		if req["opcode"] != OpUnsubscribe || req["guid"] != guid {
			t.Errorf("unsubscribe frame = %v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive unsubscribe")
	}

	if len(client.Subscriptions()) != 0 {
		t.Error("subscription should be removed")
	}
}

func TestClient_Messages(t *testing.T) {
	frames := []string{
		`{"requestGuid": "g-1", "httpCode": 200, "message": "Handled successfully"}`,
		`{"data": {"bids": [{"price": 250.1, "volume": 3}], "asks": []}, "guid": "g-1"}`,
		`not json`,
		`{"requestGuid": "g-2", "httpCode": 400, "message": "Invalid exchange"}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		drain(conn)
	})
	defer server.Close()

	client := NewClient(testConfig(server), &staticTokens{}, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var got []Message
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case msg := <-client.Messages():
			got = append(got, msg)
		case <-timeout:
			t.Fatalf("received %d messages, want 3", len(got))
		}
	}

	if got[0].Response == nil || !got[0].Response.OK() || got[0].GUID != "g-1" {
		t.Errorf("message 0 = %+v, want ok response for g-1", got[0])
	}
	if got[1].Response != nil || got[1].GUID != "g-1" || !strings.Contains(string(got[1].Data), "250.1") {
		t.Errorf("message 1 = %+v, want data for g-1", got[1])
	}
	if got[1].ReceivedAt.IsZero() {
		t.Error("ReceivedAt should be set")
	}
	if got[2].Response == nil || got[2].Response.OK() || got[2].Response.HTTPCode != 400 {
		t.Errorf("message 2 = %+v, want rejected response", got[2])
	}
}

func TestClient_ServerCloseReportsError(t *testing.T) {
	var once sync.Once
	server := mockWSServer(t, func(conn *websocket.Conn) {
		once.Do(func() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
		})
	})
	defer server.Close()

	client := NewClient(testConfig(server), &staticTokens{}, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Errorf("err = %v, want going-away close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported after server close")
	}

	// The read loop marks the client disconnected on exit.
	deadline := time.Now().Add(time.Second)
	for client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if client.IsConnected() {
		t.Error("client should be disconnected")
	}
}

func TestDecodeMessage(t *testing.T) {
	now := time.Now()

	msg, err := decodeMessage([]byte(`{"data": {"a": 1}, "guid": "x"}`), now)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.GUID != "x" || msg.Response != nil || string(msg.Data) != `{"a": 1}` {
		t.Errorf("msg = %+v", msg)
	}
	if !msg.ReceivedAt.Equal(now) {
		t.Errorf("ReceivedAt = %v, want %v", msg.ReceivedAt, now)
	}

	if _, err := decodeMessage([]byte(`[`), now); err == nil {
		t.Error("expected error for malformed frame")
	}
}

func TestRequestBuilders(t *testing.T) {
	data, err := json.Marshal(SummariesRequest("MOEX", "7500031"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"opcode":"SummariesGetAndSubscribeV2"`, `"portfolio":"7500031"`, `"exchange":"MOEX"`} {
		if !strings.Contains(s, want) {
			t.Errorf("%s missing %s", s, want)
		}
	}
	if strings.Contains(s, `"depth"`) || strings.Contains(s, `"tf"`) {
		t.Errorf("unused fields should be omitted: %s", s)
	}
}
