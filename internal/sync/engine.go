// Package sync keeps the message sequence of the active conversation
// consistent across the initial history fetch, realtime pushes, periodic
// re-polls, and optimistic local sends and deletes.
package sync

import (
	"context"
	"encoding/base64"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/outbox"
	"github.com/matheus3301/chatflow/internal/status"
	"go.uber.org/zap"
)

// MaxImageSize is the largest attachment accepted by SendImage.
const MaxImageSize = 5 * 1024 * 1024

// DefaultPollInterval is used when Options.PollInterval is unset.
const DefaultPollInterval = 3 * time.Second

var (
	// ErrEmptyMessage rejects a text send that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoConversation is returned by sends made before a peer is selected.
	ErrNoConversation = errors.New("no active conversation")
)

// Mode is the connectivity sub-state of a Ready conversation.
type Mode string

const (
	ModeLive     Mode = "LIVE"
	ModeDegraded Mode = "DEGRADED"
)

// Transport is the slice of the transport adapter the engine depends on.
type Transport interface {
	FetchHistory(ctx context.Context, peerID string) ([]chat.Message, error)
	SendText(ctx context.Context, peerID, body string) (chat.Message, error)
	SendImage(ctx context.Context, peerID string, img chat.ImageFile) (chat.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	Broadcast(m chat.Message) error
	Connected() bool
}

// Identity supplies the logged-in user id.
type Identity interface {
	UserID() string
}

// Options tunes the engine.
type Options struct {
	PollInterval time.Duration
}

// Notice is the payload of bus.ConversationNotice.
type Notice struct {
	Op  string
	Err error
}

// Snapshot is the observable state of the engine.
type Snapshot struct {
	Phase     status.State
	Mode      Mode
	Peer      *chat.Contact
	Messages  []chat.Message
	LoadErr   error
	Sending   bool
	Uploading bool
	Polling   bool
	Draft     string
	Notice    string
}

type conversation struct {
	peer     chat.Contact
	key      string
	seq      uint64
	messages []chat.Message
	loadErr  error

	// Local arrivals and removals are stamped with rev while a history fetch
	// is outstanding, so the fetch result can be reconciled with them.
	rev      uint64
	fetching int
	arrived  map[string]uint64
	removed  map[string]uint64
}

func newConversation(peer chat.Contact, key string, seq uint64) *conversation {
	return &conversation{
		peer:    peer,
		key:     key,
		seq:     seq,
		arrived: make(map[string]uint64),
		removed: make(map[string]uint64),
	}
}

// beginFetch marks a history fetch as outstanding and returns its start rev.
func (c *conversation) beginFetch() uint64 {
	c.fetching++
	return c.rev
}

// endFetch retires a fetch. The logs are dropped once none is outstanding.
func (c *conversation) endFetch() {
	c.fetching--
	if c.fetching <= 0 {
		c.fetching = 0
		clear(c.arrived)
		clear(c.removed)
	}
}

func (c *conversation) noteArrival(id string) {
	c.rev++
	if c.fetching > 0 {
		c.arrived[id] = c.rev
		delete(c.removed, id)
	}
}

func (c *conversation) noteRemoval(id string) {
	c.rev++
	if c.fetching > 0 {
		c.removed[id] = c.rev
		delete(c.arrived, id)
	}
}

// reconcile combines a history fetch that began at since with the local
// store: pending sends and entries that arrived after since are kept, and
// fetched entries removed after since stay removed.
func (c *conversation) reconcile(fetched []chat.Message, since uint64) []chat.Message {
	var local []chat.Message
	for _, m := range c.messages {
		if m.Status == chat.StatusPending || c.arrived[m.ID] > since {
			local = append(local, m)
		}
	}
	kept := make([]chat.Message, 0, len(fetched))
	for _, m := range fetched {
		if c.removed[m.ID] <= since {
			kept = append(kept, m)
		}
	}
	return merge(kept, local)
}

// Engine owns the message store of the active conversation. Every store
// mutation happens under mu; network calls never do.
type Engine struct {
	transport Transport
	identity  Identity
	sender    *outbox.Sender
	bus       *bus.Bus
	logger    *zap.Logger
	phase     *status.Machine
	interval  time.Duration

	mu     sync.Mutex
	conv   *conversation
	seq    uint64
	mode   Mode
	draft  string
	notice string
	poll   context.CancelFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(t Transport, id Identity, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Engine{
		transport: t,
		identity:  id,
		sender:    sender,
		bus:       b,
		logger:    logger,
		phase:     status.NewConversationMachine(b),
		interval:  opts.PollInterval,
		mode:      ModeDegraded,
	}
}

// Start subscribes to transport events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("transport.", 256)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event loop and the poll timer.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	e.mu.Lock()
	e.stopPollLocked()
	e.mu.Unlock()
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.TransportConnected:
		e.HandleConnect()
	case bus.TransportDisconnected, bus.TransportConnectError, bus.TransportReconnectFailed:
		e.HandleDisconnect()
	case bus.TransportMessage:
		if m, ok := evt.Payload.(chat.Message); ok {
			e.HandleRealtimeMessage(m)
		}
	case bus.TransportMessageDeleted:
		if id, ok := evt.Payload.(string); ok {
			e.HandleRealtimeDelete(id)
		}
	}
}

// SelectConversation makes peer the active conversation and loads its
// history. A fetch that completes after another selection is discarded.
func (e *Engine) SelectConversation(ctx context.Context, peer chat.Contact) error {
	self := e.identity.UserID()

	e.mu.Lock()
	e.seq++
	conv := newConversation(peer, chat.ConversationKey(self, peer.ID), e.seq)
	since := conv.beginFetch()
	e.conv = conv
	e.draft = ""
	e.notice = ""
	e.stopPollLocked()
	e.moveLocked(status.Loading)
	e.publishLocked()
	e.mu.Unlock()

	fetched, err := e.transport.FetchHistory(ctx, peer.ID)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer conv.endFetch()
	if !e.activeLocked(conv) {
		e.logger.Debug("discarding stale history", zap.String("peer_id", peer.ID))
		return nil
	}
	if err != nil {
		conv.loadErr = err
		e.noticeLocked("load conversation", err)
	} else {
		conv.messages = conv.reconcile(e.keyed(conv, fetched), since)
	}
	e.moveLocked(status.Ready)
	if e.transport.Connected() {
		e.mode = ModeLive
	} else {
		e.mode = ModeDegraded
	}
	e.syncPollLocked()
	e.publishLocked()
	return err
}

// SendText sends body to the active peer. Empty bodies and sends issued while
// another send is outstanding for the conversation are rejected without side
// effects.
func (e *Engine) SendText(ctx context.Context, body string) error {
	text := strings.TrimSpace(body)
	if text == "" {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	conv := e.conv
	if conv == nil {
		e.mu.Unlock()
		return ErrNoConversation
	}
	if e.sender.Busy(conv.key) {
		e.mu.Unlock()
		return outbox.ErrInFlight
	}
	e.draft = ""
	e.mu.Unlock()

	m, err := e.sender.Send(ctx, e.ledger(conv), outbox.Draft{
		From: e.identity.UserID(),
		To:   conv.peer.ID,
		Kind: chat.KindText,
		Body: text,
	})
	if err != nil {
		e.mu.Lock()
		if e.activeLocked(conv) {
			e.draft = body
			e.noticeLocked("send message", err)
			e.publishLocked()
		}
		e.mu.Unlock()
		return err
	}
	e.broadcast(m)
	return nil
}

// SendImage uploads img to the active peer. The type and size are checked
// before anything is inserted or sent.
func (e *Engine) SendImage(ctx context.Context, img chat.ImageFile) error {
	if !strings.HasPrefix(img.ContentType, "image/") {
		return chat.Validation("send image", "file must be an image")
	}
	if img.Size() > MaxImageSize {
		return chat.Validation("send image", "image must be 5 MB or smaller")
	}

	e.mu.Lock()
	conv := e.conv
	e.mu.Unlock()
	if conv == nil {
		return ErrNoConversation
	}
	if e.sender.Busy(conv.key) {
		return outbox.ErrInFlight
	}

	m, err := e.sender.Send(ctx, e.ledger(conv), outbox.Draft{
		From:  e.identity.UserID(),
		To:    conv.peer.ID,
		Kind:  chat.KindImage,
		Body:  previewURL(img),
		Image: &img,
	})
	if err != nil {
		e.mu.Lock()
		if e.activeLocked(conv) {
			e.noticeLocked("send image", err)
			e.publishLocked()
		}
		e.mu.Unlock()
		return err
	}
	e.broadcast(m)
	return nil
}

func previewURL(img chat.ImageFile) string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func (e *Engine) broadcast(m chat.Message) {
	e.mu.Lock()
	live := e.mode == ModeLive
	e.mu.Unlock()
	if !live {
		return
	}
	if err := e.transport.Broadcast(m); err != nil {
		e.logger.Warn("broadcast failed", zap.String("msg_id", m.ID), zap.Error(err))
	}
}

// DeleteMessage removes id at once and then deletes it on the server. When
// the server call fails the history is re-fetched and becomes authoritative.
func (e *Engine) DeleteMessage(ctx context.Context, id string) error {
	e.mu.Lock()
	conv := e.conv
	if conv == nil {
		e.mu.Unlock()
		return nil
	}
	i := indexOf(conv.messages, id)
	if i < 0 {
		e.mu.Unlock()
		return nil
	}
	if conv.messages[i].Status == chat.StatusPending {
		e.mu.Unlock()
		return chat.Validation("delete message", "message is still sending")
	}
	conv.messages, _ = remove(conv.messages, id)
	conv.noteRemoval(id)
	e.publishLocked()
	e.mu.Unlock()

	err := e.transport.DeleteMessage(ctx, id)
	if err == nil || chat.IsKind(err, chat.KindConflictOrNotFound) {
		return nil
	}
	e.logger.Warn("delete failed, resyncing", zap.String("msg_id", id), zap.Error(err))

	e.mu.Lock()
	if e.activeLocked(conv) {
		e.noticeLocked("delete message", err)
		e.publishLocked()
	}
	e.mu.Unlock()

	e.resync(ctx, conv)
	return err
}

// resync replaces the store of conv with a fresh fetch, keeping pending
// sends and anything that arrived while the fetch ran.
func (e *Engine) resync(ctx context.Context, conv *conversation) {
	e.mu.Lock()
	since := conv.beginFetch()
	e.mu.Unlock()

	fetched, err := e.transport.FetchHistory(ctx, conv.peer.ID)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer conv.endFetch()
	if err != nil {
		e.logger.Warn("resync failed", zap.String("peer_id", conv.peer.ID), zap.Error(err))
		if e.activeLocked(conv) {
			e.noticeLocked("refresh conversation", err)
			e.publishLocked()
		}
		return
	}
	if !e.activeLocked(conv) {
		return
	}
	conv.messages = conv.reconcile(e.keyed(conv, fetched), since)
	e.publishLocked()
}

// HandleRealtimeMessage merges a pushed message into the active
// conversation. Known ids and messages for other peers are dropped.
func (e *Engine) HandleRealtimeMessage(m chat.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv := e.conv
	if conv == nil || !m.Involves(conv.peer.ID) {
		return
	}
	if indexOf(conv.messages, m.ID) >= 0 {
		return
	}
	m.ConversationKey = conv.key
	m.Status = chat.StatusConfirmed
	conv.messages = merge(conv.messages, []chat.Message{m})
	conv.noteArrival(m.ID)
	e.publishLocked()
}

// HandleRealtimeDelete removes id from the active conversation if present.
func (e *Engine) HandleRealtimeDelete(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv := e.conv
	if conv == nil {
		return
	}
	conv.noteRemoval(id)
	var ok bool
	if conv.messages, ok = remove(conv.messages, id); ok {
		e.publishLocked()
	}
}

// HandleConnect switches to Live and stops polling.
func (e *Engine) HandleConnect() {
	e.setMode(ModeLive)
}

// HandleDisconnect switches to Degraded and, when a conversation is Ready,
// starts polling.
func (e *Engine) HandleDisconnect() {
	e.setMode(ModeDegraded)
}

func (e *Engine) setMode(m Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == m {
		return
	}
	e.logger.Info("conversation mode changed", zap.String("from", string(e.mode)), zap.String("to", string(m)))
	e.mode = m
	e.syncPollLocked()
	e.publishLocked()
}

// pollTick re-fetches conv and replaces the store only when the ordered id
// sequence changed.
func (e *Engine) pollTick(ctx context.Context, conv *conversation) {
	e.mu.Lock()
	since := conv.beginFetch()
	e.mu.Unlock()

	fetched, err := e.transport.FetchHistory(ctx, conv.peer.ID)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer conv.endFetch()
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Debug("poll failed", zap.String("peer_id", conv.peer.ID), zap.Error(err))
			e.expire(err)
		}
		return
	}
	if !e.activeLocked(conv) || ctx.Err() != nil {
		return
	}
	next := conv.reconcile(e.keyed(conv, fetched), since)
	if sameIDs(next, conv.messages) {
		return
	}
	conv.messages = next
	e.publishLocked()
}

// syncPollLocked keeps exactly one poll timer armed while the conversation is
// Ready and Degraded, and none otherwise.
func (e *Engine) syncPollLocked() {
	want := e.conv != nil && e.phase.Is(status.Ready) && e.mode == ModeDegraded
	if !want {
		e.stopPollLocked()
		return
	}
	if e.poll != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.poll = cancel
	conv := e.conv
	go func() {
		t := time.NewTicker(e.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				e.pollTick(ctx, conv)
			case <-ctx.Done():
				return
			}
		}
	}()
	e.logger.Debug("polling armed", zap.String("peer_id", conv.peer.ID), zap.Duration("interval", e.interval))
}

func (e *Engine) stopPollLocked() {
	if e.poll != nil {
		e.poll()
		e.poll = nil
	}
}

// Reset clears the active conversation. Called on logout.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPollLocked()
	e.conv = nil
	e.draft = ""
	e.notice = ""
	e.phase.Force(status.Idle)
	e.publishLocked()
}

// SetDraft records the composer text for the active conversation.
func (e *Engine) SetDraft(text string) {
	e.mu.Lock()
	e.draft = text
	e.mu.Unlock()
}

// Draft returns the composer text, including text restored after a failed send.
func (e *Engine) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// Mode returns the current connectivity mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Snapshot returns a copy of the observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		Phase:   e.phase.Current(),
		Mode:    e.mode,
		Polling: e.poll != nil,
		Draft:   e.draft,
		Notice:  e.notice,
	}
	if c := e.conv; c != nil {
		peer := c.peer
		s.Peer = &peer
		s.Messages = slices.Clone(c.messages)
		s.LoadErr = c.loadErr
		if kind, ok := e.sender.InFlight(c.key); ok {
			s.Sending = kind == chat.KindText
			s.Uploading = kind == chat.KindImage
		}
	}
	return s
}

func (e *Engine) publishLocked() {
	e.bus.Emit(bus.ConversationUpdated, e.snapshotLocked())
}

func (e *Engine) noticeLocked(op string, err error) {
	e.notice = noticeText(op, err)
	e.bus.Emit(bus.ConversationNotice, Notice{Op: op, Err: err})
	e.expire(err)
}

func noticeText(op string, err error) string {
	switch chat.KindOf(err) {
	case chat.KindNetwork:
		return "Could not " + op + ". Check your connection and try again."
	case chat.KindAuth:
		return "Your session has expired. Please log in again."
	default:
		return "Could not " + op + ": " + err.Error()
	}
}

// expire raises session.expired for auth failures.
func (e *Engine) expire(err error) {
	if chat.IsKind(err, chat.KindAuth) {
		e.bus.Emit(bus.SessionExpired, err)
	}
}

func (e *Engine) moveLocked(to status.State) {
	if err := e.phase.Transition(to); err != nil {
		e.logger.Debug("forcing conversation phase", zap.Error(err))
		e.phase.Force(to)
	}
}

func (e *Engine) activeLocked(conv *conversation) bool {
	return e.conv != nil && e.conv.key == conv.key && e.conv.seq == conv.seq
}

// keyed stamps fetched records with the conversation key.
func (e *Engine) keyed(conv *conversation, ms []chat.Message) []chat.Message {
	out := make([]chat.Message, len(ms))
	for i, m := range ms {
		m.ConversationKey = conv.key
		if m.Status == "" {
			m.Status = chat.StatusConfirmed
		}
		out[i] = m
	}
	return out
}

// ledger returns the outbox ledger bound to conv.
func (e *Engine) ledger(conv *conversation) outbox.Ledger {
	return &convLedger{e: e, conv: conv}
}

type convLedger struct {
	e    *Engine
	conv *conversation
}

func (l *convLedger) Insert(m chat.Message) {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if !l.e.activeLocked(l.conv) {
		return
	}
	l.conv.messages = merge(l.conv.messages, []chat.Message{m})
	l.e.publishLocked()
}

// Confirm swaps the pending entry for the server record. When the server id
// already arrived through a push or poll, the pending entry is dropped.
func (l *convLedger) Confirm(tempID string, m chat.Message) {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if !l.e.activeLocked(l.conv) {
		return
	}
	m.ConversationKey = l.conv.key
	rest, _ := remove(l.conv.messages, tempID)
	l.conv.messages = merge(rest, []chat.Message{m})
	l.conv.noteArrival(m.ID)
	l.e.publishLocked()
}

func (l *convLedger) Discard(tempID string) {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if !l.e.activeLocked(l.conv) {
		return
	}
	l.conv.messages, _ = remove(l.conv.messages, tempID)
	l.e.publishLocked()
}
