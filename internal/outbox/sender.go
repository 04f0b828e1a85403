// Package outbox runs the optimistic send lifecycle: a message is shown as
// pending under a temporary id, then either swapped for the server's record
// or discarded when the request fails.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"go.uber.org/zap"
)

// ErrInFlight rejects a send while another one, text or image, is
// outstanding for the conversation.
var ErrInFlight = errors.New("a send is already in flight")

// Ledger is the message store a send updates. Implementations ignore calls
// once the conversation they belong to is no longer active.
type Ledger interface {
	Insert(m chat.Message)
	Confirm(tempID string, confirmed chat.Message)
	Discard(tempID string)
}

// Dispatcher performs the server writes.
type Dispatcher interface {
	SendText(ctx context.Context, peerID, body string) (chat.Message, error)
	SendImage(ctx context.Context, peerID string, img chat.ImageFile) (chat.Message, error)
}

// Draft describes one outgoing message. For images, Body is the local
// preview shown while the upload is pending.
type Draft struct {
	From  string
	To    string
	Kind  chat.Kind
	Body  string
	Image *chat.ImageFile
}

// Ack is the payload of bus.OutboxSendAck.
type Ack struct {
	TempID   string
	ServerID string
	Key      string
}

// Failure is the payload of bus.OutboxSendFailed.
type Failure struct {
	Message chat.Message
	Err     error
}

// Sender issues sends and reconciles their ledger entries.
type Sender struct {
	dispatch Dispatcher
	bus      *bus.Bus
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]chat.Kind
}

// NewSender creates a new outbox sender.
func NewSender(dispatch Dispatcher, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		dispatch: dispatch,
		bus:      b,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]chat.Kind),
	}
}

// NewTempID returns a clock-ordered local id for a pending message.
func NewTempID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "tmp-" + uuid.NewString()
	}
	return "tmp-" + id.String()
}

// Busy reports whether any send is outstanding for the conversation key.
func (s *Sender) Busy(key string) bool {
	_, ok := s.InFlight(key)
	return ok
}

// InFlight returns the kind of the send outstanding for key, if any.
func (s *Sender) InFlight(key string) (chat.Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.inFlight[key]
	return kind, ok
}

func (s *Sender) acquire(key string, kind chat.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[key]; ok {
		return false
	}
	s.inFlight[key] = kind
	return true
}

func (s *Sender) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// Send inserts d as pending into ledger, issues the write, and confirms or
// discards the pending entry. It blocks until the server answers.
func (s *Sender) Send(ctx context.Context, ledger Ledger, d Draft) (chat.Message, error) {
	key := chat.ConversationKey(d.From, d.To)
	if !s.acquire(key, d.Kind) {
		return chat.Message{}, ErrInFlight
	}
	defer s.release(key)

	pending := chat.Message{
		ID:              NewTempID(),
		ConversationKey: key,
		SenderID:        d.From,
		ReceiverID:      d.To,
		Kind:            d.Kind,
		Body:            d.Body,
		CreatedAt:       s.now(),
		Status:          chat.StatusPending,
	}
	ledger.Insert(pending)

	var (
		confirmed chat.Message
		err       error
	)
	if d.Kind == chat.KindImage && d.Image != nil {
		confirmed, err = s.dispatch.SendImage(ctx, d.To, *d.Image)
	} else {
		confirmed, err = s.dispatch.SendText(ctx, d.To, d.Body)
	}
	if err != nil {
		ledger.Discard(pending.ID)
		pending.Status = chat.StatusFailed
		s.logger.Warn("send failed", zap.String("temp_id", pending.ID), zap.String("kind", string(d.Kind)), zap.Error(err))
		s.bus.Emit(bus.OutboxSendFailed, Failure{Message: pending, Err: err})
		return chat.Message{}, err
	}

	if confirmed.Kind == chat.KindImage && confirmed.Body == "" {
		confirmed.Body = pending.Body
	}
	confirmed.Status = chat.StatusConfirmed
	ledger.Confirm(pending.ID, confirmed)

	s.logger.Info("message sent", zap.String("temp_id", pending.ID), zap.String("server_id", confirmed.ID))
	s.bus.Emit(bus.OutboxSendAck, Ack{TempID: pending.ID, ServerID: confirmed.ID, Key: key})
	return confirmed, nil
}
