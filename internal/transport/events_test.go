package transport

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/realtime"
	"github.com/matheus3301/chatflow/internal/status"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) (*EventHandler, *status.Machine, <-chan bus.Event) {
	t.Helper()
	b := bus.New()
	m := status.NewChannelMachine(nil)
	ch, unsub := b.Subscribe("transport.", 16)
	t.Cleanup(unsub)
	return NewEventHandler(b, m, zap.NewNop()), m, ch
}

func expectEvent(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		if evt.Kind != kind {
			t.Fatalf("event kind = %q, want %q", evt.Kind, kind)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s", kind)
	}
	return bus.Event{}
}

func expectNone(t *testing.T, ch <-chan bus.Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %s", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleLifecycle(t *testing.T) {
	h, m, ch := newHandler(t)
	m.Force(status.Connecting)

	h.Handle(realtime.Event{Name: realtime.EventConnect})
	expectEvent(t, ch, bus.TransportConnected)
	if m.Current() != status.Connected {
		t.Errorf("state = %s, want CONNECTED", m.Current())
	}

	h.Handle(realtime.Event{Name: realtime.EventDisconnect, Reason: "server closed (1001)"})
	evt := expectEvent(t, ch, bus.TransportDisconnected)
	if evt.Payload != "server closed (1001)" {
		t.Errorf("reason = %v", evt.Payload)
	}
	if m.Current() != status.Reconnecting {
		t.Errorf("state = %s, want RECONNECTING", m.Current())
	}

	h.Handle(realtime.Event{Name: realtime.EventConnectError, Err: errors.New("refused")})
	evt = expectEvent(t, ch, bus.TransportConnectError)
	if !chat.IsKind(evt.Payload.(error), chat.KindChannel) {
		t.Errorf("payload = %v, want channel error", evt.Payload)
	}

	h.Handle(realtime.Event{Name: realtime.EventReconnect})
	expectEvent(t, ch, bus.TransportConnected)

	h.Handle(realtime.Event{Name: realtime.EventDisconnect, Reason: realtime.ReasonClientDisconnect})
	expectEvent(t, ch, bus.TransportDisconnected)
	if m.Current() != status.Disconnected {
		t.Errorf("state = %s, want DISCONNECTED", m.Current())
	}
}

func TestHandleReconnectFailed(t *testing.T) {
	h, m, ch := newHandler(t)
	m.Force(status.Connecting)

	h.Handle(realtime.Event{Name: realtime.EventReconnectFailed, Attempt: 5})
	evt := expectEvent(t, ch, bus.TransportReconnectFailed)
	if evt.Payload != 5 {
		t.Errorf("attempts = %v, want 5", evt.Payload)
	}
	if m.Current() != status.Failed {
		t.Errorf("state = %s, want FAILED", m.Current())
	}
}

func TestHandleInboundMessage(t *testing.T) {
	h, _, ch := newHandler(t)

	h.Handle(realtime.Event{
		Name: realtime.EventSendMessage,
		Data: json.RawMessage(`{"_id":"m1","message":"hi","senderId":"a","recieverId":"b","createdAt":"2026-01-01T00:00:00Z"}`),
	})
	evt := expectEvent(t, ch, bus.TransportMessage)
	msg, ok := evt.Payload.(chat.Message)
	if !ok {
		t.Fatalf("payload type = %T, want chat.Message", evt.Payload)
	}
	if msg.ID != "m1" || msg.Body != "hi" || msg.ReceiverID != "b" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestHandleMalformedMessageDropped(t *testing.T) {
	h, _, ch := newHandler(t)

	h.Handle(realtime.Event{Name: realtime.EventSendMessage, Data: json.RawMessage(`{"message":"no id"}`)})
	h.Handle(realtime.Event{Name: realtime.EventSendMessage, Data: json.RawMessage(`[1,2`)})
	h.Handle(realtime.Event{Name: "typing"})
	expectNone(t, ch)
}

func TestHandleDeleted(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"object", `{"messageId":"m1"}`, "m1"},
		{"bare id", `"m2"`, "m2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, ch := newHandler(t)
			h.Handle(realtime.Event{Name: realtime.EventMessageDeleted, Data: json.RawMessage(tt.data)})
			evt := expectEvent(t, ch, bus.TransportMessageDeleted)
			if evt.Payload != tt.want {
				t.Errorf("id = %v, want %s", evt.Payload, tt.want)
			}
		})
	}

	h, _, ch := newHandler(t)
	h.Handle(realtime.Event{Name: realtime.EventMessageDeleted, Data: json.RawMessage(`{}`)})
	expectNone(t, ch)
}
