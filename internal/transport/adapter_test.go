package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/realtime"
	"github.com/matheus3301/chatflow/internal/status"
	"go.uber.org/zap"
)

type fixture struct {
	adapter *Adapter
	bus     *bus.Bus
	machine *status.Machine
	frames  chan realtime.Envelope
}

// newFixture serves REST under chi and a websocket at /ws that records frames.
func newFixture(t *testing.T, routes func(r chi.Router)) *fixture {
	t.Helper()
	frames := make(chan realtime.Envelope, 16)
	upgrader := websocket.Upgrader{}

	r := chi.NewRouter()
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			var env realtime.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			frames <- env
		}
	})
	if routes != nil {
		routes(r)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	b := bus.New()
	m := status.NewChannelMachine(b)
	client := api.New(srv.URL, 5*time.Second, api.TokenFunc(func() string { return "tok" }), logger)
	ch := realtime.New(realtime.Options{
		URL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Delay: 10 * time.Millisecond,
	}, logger)
	a := NewAdapter(client, ch, m, b, logger)
	t.Cleanup(a.Disconnect)
	return &fixture{adapter: a, bus: b, machine: m, frames: frames}
}

func TestFetchHistorySkipsMalformed(t *testing.T) {
	f := newFixture(t, func(r chi.Router) {
		r.Get("/messages/{peer}", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `[
				{"_id":"m1","message":"a","senderId":"me","recieverId":"p","createdAt":"2026-01-01T00:00:00Z"},
				{"message":"no id"},
				{"_id":"m2","message":"b","senderId":"p","recieverId":"me","createdAt":"2026-01-01T00:01:00Z"}
			]`)
		})
	})

	msgs, err := f.adapter.FetchHistory(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestSendTextFillsParticipants(t *testing.T) {
	f := newFixture(t, func(r chi.Router) {
		r.Post("/messages/sendMessage/{peer}", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"newMessage":{"_id":"srv1","createdAt":"2026-01-01T00:00:00Z"}}`)
		})
	})
	f.adapter.mu.Lock()
	f.adapter.self = "me"
	f.adapter.mu.Unlock()

	m, err := f.adapter.SendText(context.Background(), "p", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != "srv1" || m.SenderID != "me" || m.ReceiverID != "p" || m.Body != "hello" {
		t.Errorf("m = %+v", m)
	}
	if m.ConversationKey != chat.ConversationKey("me", "p") {
		t.Errorf("key = %q", m.ConversationKey)
	}
}

func TestSendImageMalformedResponse(t *testing.T) {
	f := newFixture(t, func(r chi.Router) {
		r.Post("/messages/sendFile/{peer}", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"ok":true}`)
		})
	})

	_, err := f.adapter.SendImage(context.Background(), "p", chat.ImageFile{Name: "a.png", ContentType: "image/png", Data: []byte{1}})
	if err == nil {
		t.Fatal("SendImage() expected error for a response without id")
	}
}

func TestConnectBroadcastDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	events, unsub := f.bus.Subscribe("transport.", 32)
	defer unsub()

	if err := f.adapter.Broadcast(chat.Message{ID: "m1"}); !chat.IsKind(err, chat.KindChannel) {
		t.Errorf("Broadcast while disconnected error = %v, want channel error", err)
	}

	f.adapter.Connect("me", "tok")
	waitKind(t, events, bus.TransportConnected)
	if !f.adapter.Connected() || f.adapter.State() != status.Connected {
		t.Fatalf("state = %s, connected = %v", f.adapter.State(), f.adapter.Connected())
	}

	join := <-f.frames
	var uid string
	_ = json.Unmarshal(join.Data, &uid)
	if join.Event != realtime.EventJoin || uid != "me" {
		t.Errorf("join = %s %s", join.Event, join.Data)
	}

	msg := chat.Message{ID: "m1", SenderID: "me", ReceiverID: "p", Kind: chat.KindText, Body: "hi", CreatedAt: time.Now()}
	if err := f.adapter.Broadcast(msg); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	select {
	case env := <-f.frames:
		var rec api.MessageRecord
		_ = json.Unmarshal(env.Data, &rec)
		if env.Event != realtime.EventSendMessage || rec.MongoID != "m1" || rec.Message != "hi" {
			t.Errorf("broadcast = %s %s", env.Event, env.Data)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for broadcast frame")
	}

	f.adapter.Disconnect()
	f.adapter.Disconnect()
	if f.adapter.Connected() || f.adapter.State() != status.Disconnected {
		t.Errorf("after Disconnect state = %s", f.adapter.State())
	}
}

func waitKind(t *testing.T, ch <-chan bus.Event, kind string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}
