package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"voicecue/devserver"
	"voicecue/metrics"
	"voicecue/transport"
)

var testMetrics = metrics.New(prometheus.NewRegistry())

func startDevServer(t *testing.T, cfg devserver.Config) (wsURL, httpURL string) {
	t.Helper()
	if cfg.UploadDir == "" {
		cfg.UploadDir = t.TempDir()
	}
	srv := devserver.New(cfg, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws", ts.URL
}

func dial(t *testing.T, url string) *transport.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := transport.Dial(ctx, url, transport.Options{Metrics: testMetrics})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type response struct {
	Function string `json:"nom_fonction"`
	ResultID string `json:"resultId"`
}

func TestEmitAndSubscribe(t *testing.T) {
	url, _ := startDevServer(t, devserver.Config{ResultIDs: []string{"1"}})
	conn := dial(t, url)

	got := make(chan response, 4)
	conn.Subscribe(transport.EventServerResponse, func(data json.RawMessage) {
		var r response
		if err := json.Unmarshal(data, &r); err != nil {
			t.Errorf("bad payload: %v", err)
			return
		}
		got <- r
	})

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(conn.Emit(transport.EventAudioStart, nil))
	must(conn.Emit(transport.EventAudioChunk, transport.ChunkPayload{Data: "UklGRg=="}))
	must(conn.Emit(transport.EventAudioEnd, nil))

	select {
	case r := <-got:
		if r.Function != "answer" || r.ResultID != "1" {
			t.Errorf("response = %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no serverResponse")
	}

	sent, received := conn.Stats()
	if sent != 3 || received != 1 {
		t.Errorf("stats sent=%d received=%d", sent, received)
	}
}

func TestUnsubscribe(t *testing.T) {
	url, _ := startDevServer(t, devserver.Config{})
	conn := dial(t, url)

	var mu sync.Mutex
	calls := 0
	unsub := conn.Subscribe(transport.EventServerResponse, func(json.RawMessage) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	unsub()

	done := make(chan struct{}, 1)
	conn.Subscribe(transport.EventServerResponse, func(json.RawMessage) { done <- struct{}{} })

	if err := conn.Emit(transport.EventAskForMoreInfo, nil); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no serverResponse")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("unsubscribed handler ran %d times", calls)
	}
}

func TestDialFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := transport.Dial(ctx, url, transport.Options{Metrics: testMetrics})
	if !errors.Is(err, transport.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

func TestDialRejectedHandshake(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, err := transport.Dial(context.Background(), url, transport.Options{Metrics: testMetrics})
	if !errors.Is(err, transport.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error does not carry status: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	url, _ := startDevServer(t, devserver.Config{})
	conn := dial(t, url)

	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	err := conn.Emit(transport.EventAudioEnd, nil)
	if !errors.Is(err, transport.ErrEmit) {
		t.Fatalf("Emit after Close: err = %v, want ErrEmit", err)
	}

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read side still open after Close")
	}
}

func TestServerGoingAwayClosesConn(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.WriteMessage(websocket.TextMessage, []byte(`not json`))
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), time.Now().Add(time.Second))
		ws.Close()
	}))
	t.Cleanup(ts.Close)

	conn := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http"))
	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after server hung up")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		err := conn.Emit(transport.EventAudioStart, nil)
		if errors.Is(err, transport.ErrEmit) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Emit kept succeeding on a dead connection")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOffline(t *testing.T) {
	err := transport.Offline{Endpoint: "ws://nowhere"}.Emit(transport.EventAudioStart, nil)
	if !errors.Is(err, transport.ErrEmit) || !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
}

func TestMarshalEnvelope(t *testing.T) {
	frame, err := transport.Marshal(transport.EventAudioEnd, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(frame) != `{"event":"audioEnd"}` {
		t.Errorf("frame = %s", frame)
	}

	frame, err = transport.Marshal(transport.EventAudioChunk, transport.ChunkPayload{Data: "QQ=="})
	if err != nil {
		t.Fatal(err)
	}
	env, err := transport.Unmarshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	if env.Event != transport.EventAudioChunk || string(env.Data) != `{"data":"QQ=="}` {
		t.Errorf("envelope = %s / %s", env.Event, env.Data)
	}

	if _, err := transport.Unmarshal([]byte(`{"data":1}`)); err == nil {
		t.Error("expected error for frame without event")
	}
	if _, err := transport.Marshal("x", func() {}); err == nil {
		t.Error("expected error for unencodable payload")
	}
}
