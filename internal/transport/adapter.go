// Package transport is the Transport Adapter: it owns the realtime channel
// and the REST client, and converts everything they return into canonical
// chat records.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/realtime"
	"github.com/matheus3301/chatflow/internal/status"
	"go.uber.org/zap"
)

// Adapter owns the connection state for one logged-in user.
type Adapter struct {
	api     *api.Client
	channel *realtime.Channel
	machine *status.Machine
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.RWMutex
	self string
}

// NewAdapter wires the channel's events through an EventHandler onto b.
func NewAdapter(client *api.Client, ch *realtime.Channel, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Adapter {
	ch.SetHandler(NewEventHandler(b, machine, logger).Handle)
	return &Adapter{
		api:     client,
		channel: ch,
		machine: machine,
		logger:  logger,
		now:     time.Now,
	}
}

// Connect (re)initializes the realtime channel for userID. It returns at once;
// progress is reported through transport.* bus events.
func (a *Adapter) Connect(userID, token string) {
	a.mu.Lock()
	a.self = userID
	a.mu.Unlock()

	a.logger.Info("connecting realtime channel", zap.String("user_id", userID))
	a.channel.Disconnect()
	a.machine.Force(status.Connecting)
	a.channel.Connect(userID, token)
}

// Disconnect tears the channel down. Idempotent.
func (a *Adapter) Disconnect() {
	a.channel.Disconnect()
	a.machine.Force(status.Disconnected)

	a.mu.Lock()
	a.self = ""
	a.mu.Unlock()
}

// Connected reports whether the realtime channel is up.
func (a *Adapter) Connected() bool {
	return a.channel.Connected()
}

// State returns the channel state.
func (a *Adapter) State() status.State {
	return a.machine.Current()
}

func (a *Adapter) selfID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.self
}

// FetchHistory returns the conversation with peerID. Malformed records are
// logged and skipped.
func (a *Adapter) FetchHistory(ctx context.Context, peerID string) ([]chat.Message, error) {
	recs, err := a.api.Messages(ctx, peerID)
	if err != nil {
		return nil, err
	}
	now := a.now()
	msgs := make([]chat.Message, 0, len(recs))
	for i, rec := range recs {
		m, err := NormalizeMessage(rec, now)
		if err != nil {
			a.logger.Warn("skipping malformed history record", zap.Int("index", i), zap.String("peer", peerID), zap.Error(err))
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// SendText posts body to peerID and returns the confirmed record.
func (a *Adapter) SendText(ctx context.Context, peerID, body string) (chat.Message, error) {
	rec, err := a.api.SendMessage(ctx, peerID, body)
	if err != nil {
		return chat.Message{}, err
	}
	if rec.Message == "" {
		rec.Message = body
	}
	return a.confirmed("send text", *rec, peerID)
}

// SendImage uploads img to peerID and returns the confirmed record.
func (a *Adapter) SendImage(ctx context.Context, peerID string, img chat.ImageFile) (chat.Message, error) {
	rec, err := a.api.SendFile(ctx, peerID, img)
	if err != nil {
		return chat.Message{}, err
	}
	if rec.Type == "" {
		rec.Type = string(chat.KindImage)
	}
	return a.confirmed("send image", *rec, peerID)
}

// confirmed normalizes a send response, filling the participants the server
// may omit.
func (a *Adapter) confirmed(op string, rec api.MessageRecord, peerID string) (chat.Message, error) {
	if rec.SenderID == "" {
		rec.SenderID = api.Text(a.selfID())
	}
	if rec.RecieverID == "" && rec.ReceiverID == "" {
		rec.ReceiverID = api.Text(peerID)
	}
	m, err := NormalizeMessage(rec, a.now())
	if err != nil {
		return chat.Message{}, fmt.Errorf("%s: malformed response: %w", op, err)
	}
	return m, nil
}

// DeleteMessage deletes a message by server id.
func (a *Adapter) DeleteMessage(ctx context.Context, id string) error {
	return a.api.DeleteMessage(ctx, id)
}

// Broadcast relays a confirmed message over the realtime channel so the
// peer's push listener sees it before their next poll.
func (a *Adapter) Broadcast(m chat.Message) error {
	if err := a.channel.Emit(realtime.EventSendMessage, ToRecord(m)); err != nil {
		return chat.Channel("broadcast", err)
	}
	return nil
}
