package transport

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/chat"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrMissingID marks a server record that cannot be keyed.
var ErrMissingID = errors.New("message record has no id")

// NormalizeMessage maps a server record onto the canonical message shape.
// This is the only place that tolerates field-name variance. Records are
// returned confirmed: anything the server sends is authoritative.
func NormalizeMessage(rec api.MessageRecord, now time.Time) (chat.Message, error) {
	id := firstNonEmpty(string(rec.MongoID), string(rec.ID))
	if id == "" {
		return chat.Message{}, ErrMissingID
	}

	m := chat.Message{
		ID:         id,
		SenderID:   string(rec.SenderID),
		ReceiverID: firstNonEmpty(string(rec.RecieverID), string(rec.ReceiverID)),
		Kind:       chat.KindText,
		Body:       rec.Message,
		CreatedAt:  ParseTimestamp(string(rec.CreatedAt), id, now),
		Status:     chat.StatusConfirmed,
	}
	if rec.Type == string(chat.KindImage) || rec.File != "" {
		m.Kind = chat.KindImage
		if rec.File != "" {
			m.Body = rec.File
		}
	}
	m.ConversationKey = chat.ConversationKey(m.SenderID, m.ReceiverID)
	return m, nil
}

// ToRecord renders a message in the server's wire shape for broadcasting.
func ToRecord(m chat.Message) api.MessageRecord {
	rec := api.MessageRecord{
		MongoID:    api.Text(m.ID),
		SenderID:   api.Text(m.SenderID),
		RecieverID: api.Text(m.ReceiverID),
		CreatedAt:  api.Text(m.CreatedAt.UTC().Format(time.RFC3339Nano)),
		Type:       string(m.Kind),
	}
	if m.Kind == chat.KindImage {
		rec.File = m.Body
	} else {
		rec.Message = m.Body
	}
	return rec
}

// ParseTimestamp accepts RFC 3339 or epoch numbers. Without one, it falls
// back to the creation time embedded in a Mongo ObjectID, then to now.
func ParseTimestamp(raw, id string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			if n < 1e12 {
				return time.Unix(n, 0)
			}
			return time.UnixMilli(n)
		}
	}
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return oid.Timestamp()
	}
	return now
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
