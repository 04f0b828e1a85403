package transport

import (
	"encoding/json"
	"time"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/realtime"
	"github.com/matheus3301/chatflow/internal/status"
	"go.uber.org/zap"
)

// EventHandler turns raw realtime channel events into bus events and drives
// the channel state machine. It does not call the sync engine; the engine
// subscribes to "transport." on the bus.
type EventHandler struct {
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	now     func() time.Time
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, machine *status.Machine, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:     b,
		machine: machine,
		logger:  logger,
		now:     time.Now,
	}
}

// DeletedPayload is the body of an inbound messageDeleted event.
type DeletedPayload struct {
	MessageID string `json:"messageId"`
}

// Handle is the realtime.Handler for the adapter's channel.
func (h *EventHandler) Handle(evt realtime.Event) {
	switch evt.Name {
	case realtime.EventConnect, realtime.EventReconnect:
		h.logger.Info("realtime channel up", zap.String("event", evt.Name))
		h.move(status.Connected)
		h.bus.Emit(bus.TransportConnected, evt.Name)
	case realtime.EventDisconnect:
		h.logger.Warn("realtime channel down", zap.String("reason", evt.Reason))
		if evt.Reason == realtime.ReasonClientDisconnect {
			h.move(status.Disconnected)
		} else {
			h.move(status.Reconnecting)
		}
		h.bus.Emit(bus.TransportDisconnected, evt.Reason)
	case realtime.EventConnectError:
		h.move(status.Reconnecting)
		h.bus.Emit(bus.TransportConnectError, chat.Channel("connect", evt.Err))
	case realtime.EventReconnectFailed:
		h.logger.Error("realtime channel gave up", zap.Int("attempts", evt.Attempt))
		h.move(status.Failed)
		h.bus.Emit(bus.TransportReconnectFailed, evt.Attempt)
	case realtime.EventSendMessage:
		h.handleMessage(evt.Data)
	case realtime.EventMessageDeleted:
		h.handleDeleted(evt.Data)
	default:
		h.logger.Debug("ignoring realtime event", zap.String("event", evt.Name))
	}
}

// move applies a transition, forcing it when the channel reports a state
// change the table does not expect (e.g. a connect error while connected).
func (h *EventHandler) move(to status.State) {
	if h.machine.Is(to) {
		return
	}
	if err := h.machine.Transition(to); err != nil {
		h.logger.Debug("forcing channel state", zap.Error(err))
		h.machine.Force(to)
	}
}

func (h *EventHandler) handleMessage(data json.RawMessage) {
	var rec api.MessageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		h.logger.Warn("dropping undecodable realtime message", zap.Error(err))
		return
	}
	msg, err := NormalizeMessage(rec, h.now())
	if err != nil {
		h.logger.Warn("dropping malformed realtime message", zap.Error(err))
		return
	}
	h.bus.Emit(bus.TransportMessage, msg)
}

func (h *EventHandler) handleDeleted(data json.RawMessage) {
	var p DeletedPayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		// Some servers send the bare id.
		var id string
		if json.Unmarshal(data, &id) != nil || id == "" {
			h.logger.Warn("dropping malformed delete event", zap.ByteString("data", data))
			return
		}
		p.MessageID = id
	}
	h.bus.Emit(bus.TransportMessageDeleted, p.MessageID)
}
