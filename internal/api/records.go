package api

import (
	"bytes"
	"encoding/json"
)

// Text decodes a JSON string or number into its textual form. Server ids and
// timestamps arrive as either, depending on the endpoint.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case b[0] == '{' || b[0] == '[':
		// Structured values (e.g. {"$oid": ...}) are not textual; keep them empty
		// and let normalization reject the record if the field was required.
		*t = ""
	default:
		*t = Text(b)
	}
	return nil
}

// MessageRecord is a message as the server sends it. Field spellings vary
// between endpoints; transport.NormalizeMessage resolves them.
type MessageRecord struct {
	MongoID    Text   `json:"_id,omitempty"`
	ID         Text   `json:"id,omitempty"`
	Message    string `json:"message,omitempty"`
	SenderID   Text   `json:"senderId,omitempty"`
	RecieverID Text   `json:"recieverId,omitempty"`
	ReceiverID Text   `json:"receiverId,omitempty"`
	CreatedAt  Text   `json:"createdAt,omitempty"`
	File       string `json:"file,omitempty"`
	Type       string `json:"type,omitempty"`
}

// UserRecord is a user as returned by /users and /login.
type UserRecord struct {
	MongoID         Text            `json:"_id"`
	ID              Text            `json:"id"`
	Name            string          `json:"name"`
	Username        string          `json:"username"`
	Image           string          `json:"image"`
	ProfilePicture  string          `json:"profilePicture"`
	Status          string          `json:"status"`
	IsOnline        bool            `json:"isOnline"`
	LastMessage     json.RawMessage `json:"lastMessage"`
	LastMessageTime Text            `json:"lastMessageTime"`
	UpdatedAt       Text            `json:"updatedAt"`
	LastSeen        Text            `json:"lastSeen"`
	UnreadCount     *int            `json:"unreadCount"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	PhoneNumber     string          `json:"phoneNumber"`
}

// LoginResponse is the body of a successful /login.
type LoginResponse struct {
	Token   string     `json:"token"`
	User    UserRecord `json:"user"`
	Message string     `json:"message"`
}

// RegisterResponse is the body of a successful /register.
type RegisterResponse struct {
	Message string `json:"message"`
}

// VerifyResponse is the body of a successful /verifyOtp. Some deployments
// issue a session on verification; others require a separate login.
type VerifyResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *UserRecord `json:"user"`
}

// sendEnvelope accepts both {"newMessage": {...}} and a bare record.
type sendEnvelope struct {
	NewMessage *MessageRecord `json:"newMessage"`
	MessageRecord
}

func (e *sendEnvelope) record() *MessageRecord {
	if e.NewMessage != nil {
		return e.NewMessage
	}
	return &e.MessageRecord
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// decodeList decodes a bare JSON array, or an object holding the array under
// one of keys. Elements that do not decode as T are skipped.
func decodeList[T any](data []byte, keys ...string) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return decodeEach[T](raw), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if field, ok := obj[k]; ok {
			if err := json.Unmarshal(field, &raw); err != nil {
				return nil, err
			}
			return decodeEach[T](raw), nil
		}
	}
	return nil, nil
}

func decodeEach[T any](raw []json.RawMessage) []T {
	list := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		list = append(list, v)
	}
	return list
}
