// Package directory fetches and caches the contact list.
package directory

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/transport"
	"go.uber.org/zap"
)

// UnknownName is shown for contacts without a name.
const UnknownName = "Unknown User"

// Source lists the users visible to the current account.
type Source interface {
	Users(ctx context.Context) ([]api.UserRecord, error)
}

// Cache persists the last successfully fetched list.
type Cache interface {
	ReplaceContacts(contacts []chat.Contact) error
	ListContacts() ([]chat.Contact, error)
}

// Identity supplies the logged-in user id, excluded from the list.
type Identity interface {
	UserID() string
}

// Directory is the contact list with a last-known-good fallback.
type Directory struct {
	source   Source
	cache    Cache
	identity Identity
	bus      *bus.Bus
	logger   *zap.Logger

	mu       sync.RWMutex
	contacts []chat.Contact
}

// New creates a contact directory.
func New(source Source, cache Cache, id Identity, b *bus.Bus, logger *zap.Logger) *Directory {
	return &Directory{
		source:   source,
		cache:    cache,
		identity: id,
		bus:      b,
		logger:   logger,
	}
}

// Fetch refreshes the list from the server. On failure it returns the
// last-known-good list together with the error.
func (d *Directory) Fetch(ctx context.Context) ([]chat.Contact, error) {
	recs, err := d.source.Users(ctx)
	if err != nil {
		if chat.IsKind(err, chat.KindAuth) {
			d.bus.Emit(bus.SessionExpired, err)
		}
		d.logger.Warn("contact fetch failed, using cache", zap.Error(err))
		return d.fallback(), err
	}

	self := d.identity.UserID()
	contacts := make([]chat.Contact, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		c, ok := NormalizeContact(rec)
		if !ok {
			d.logger.Warn("dropping contact without id", zap.String("name", rec.Name))
			continue
		}
		if c.ID == self || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		contacts = append(contacts, c)
	}

	if err := d.cache.ReplaceContacts(contacts); err != nil {
		d.logger.Error("failed to cache contacts", zap.Error(err))
	}

	d.mu.Lock()
	d.contacts = contacts
	d.mu.Unlock()

	d.logger.Info("contacts fetched", zap.Int("count", len(contacts)))
	d.bus.Emit(bus.ContactsUpdated, slices.Clone(contacts))
	return slices.Clone(contacts), nil
}

func (d *Directory) fallback() []chat.Contact {
	d.mu.RLock()
	mem := d.contacts
	d.mu.RUnlock()
	if mem != nil {
		return slices.Clone(mem)
	}
	cached, err := d.cache.ListContacts()
	if err != nil {
		d.logger.Error("failed to read contact cache", zap.Error(err))
		return nil
	}
	return cached
}

// Contacts returns the in-memory list.
func (d *Directory) Contacts() []chat.Contact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.contacts)
}

// Lookup returns the contact with id, if known.
func (d *Directory) Lookup(id string) (chat.Contact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := slices.IndexFunc(d.contacts, func(c chat.Contact) bool { return c.ID == id })
	if i < 0 {
		return chat.Contact{}, false
	}
	return d.contacts[i], true
}

// Reset forgets the in-memory list. Called on logout.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.contacts = nil
	d.mu.Unlock()
}

// Filter returns the contacts whose name contains query, ignoring case.
func Filter(contacts []chat.Contact, query string) []chat.Contact {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return contacts
	}
	var out []chat.Contact
	for _, c := range contacts {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}

// NormalizeContact maps a server user record onto a Contact. It reports
// false when the record has no id.
func NormalizeContact(rec api.UserRecord) (chat.Contact, bool) {
	id := cmp.Or(string(rec.ID), string(rec.MongoID))
	if id == "" {
		return chat.Contact{}, false
	}
	c := chat.Contact{
		ID:          id,
		Name:        cmp.Or(strings.TrimSpace(rec.Name), strings.TrimSpace(rec.Username), UnknownName),
		Avatar:      cmp.Or(rec.Image, rec.ProfilePicture),
		Status:      rec.Status,
		LastMessage: lastMessage(rec.LastMessage),
		LastActivity: transport.ParseTimestamp(
			string(cmp.Or(rec.LastMessageTime, rec.UpdatedAt, rec.LastSeen)), "", time.Time{}),
		Email: rec.Email,
		Phone: cmp.Or(rec.Phone, rec.PhoneNumber),
	}
	if c.Status == "" {
		c.Status = "offline"
		if rec.IsOnline {
			c.Status = "online"
		}
	}
	if rec.UnreadCount != nil && *rec.UnreadCount > 0 {
		c.Unread = *rec.UnreadCount
	}
	return c, true
}

// lastMessage accepts a bare string or a message object.
func lastMessage(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return cmp.Or(obj.Message, obj.Text)
	}
	return ""
}
