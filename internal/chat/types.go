package chat

import (
	"strings"
	"time"
)

// Kind is the content kind of a message body.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Status tracks a message through the optimistic send lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Message is the canonical in-memory message record.
type Message struct {
	ID              string
	ConversationKey string
	SenderID        string
	ReceiverID      string
	Kind            Kind
	Body            string
	CreatedAt       time.Time
	Status          Status
}

// Involves reports whether the given participant sent or received the message.
func (m Message) Involves(userID string) bool {
	return userID != "" && (m.SenderID == userID || m.ReceiverID == userID)
}

// Contact is a directory entry.
type Contact struct {
	ID           string
	Name         string
	Avatar       string
	Status       string
	LastMessage  string
	LastActivity time.Time
	Unread       int
	Email        string
	Phone        string
}

// User is the identity of the logged-in account.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Avatar string `json:"avatar"`
}

// Session is the current user identity plus its bearer credential.
type Session struct {
	Token string
	User  User
}

// ImageFile is an image attachment read into memory.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the attachment size in bytes.
func (f ImageFile) Size() int64 {
	return int64(len(f.Data))
}

// ConversationKey derives the order-independent identifier for a two-party thread.
func ConversationKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}
