package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/chat"
)

func TestNormalizeMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stamp := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		rec        api.MessageRecord
		wantID     string
		wantRecv   string
		wantKind   chat.Kind
		wantBody   string
		wantCreate time.Time
	}{
		{
			name:     "mongo id with misspelled receiver",
			rec:      api.MessageRecord{MongoID: "m1", ID: "ignored", Message: "hi", SenderID: "a", RecieverID: "b", CreatedAt: "2026-02-01T09:30:00Z"},
			wantID:   "m1", wantRecv: "b", wantKind: chat.KindText, wantBody: "hi", wantCreate: stamp,
		},
		{
			name:     "plain id and receiverId",
			rec:      api.MessageRecord{ID: "m2", Message: "yo", SenderID: "a", ReceiverID: "b", CreatedAt: "2026-02-01T09:30:00.000Z"},
			wantID:   "m2", wantRecv: "b", wantKind: chat.KindText, wantBody: "yo", wantCreate: stamp,
		},
		{
			name:     "image by file",
			rec:      api.MessageRecord{MongoID: "m3", File: "https://cdn/x.png", SenderID: "a", RecieverID: "b", CreatedAt: api.Text("1769938200000")},
			wantID:   "m3", wantRecv: "b", wantKind: chat.KindImage, wantBody: "https://cdn/x.png", wantCreate: time.UnixMilli(1769938200000),
		},
		{
			name:     "epoch seconds",
			rec:      api.MessageRecord{MongoID: "m4", Type: "image", SenderID: "a", RecieverID: "b", CreatedAt: "1769938200"},
			wantID:   "m4", wantRecv: "b", wantKind: chat.KindImage, wantBody: "", wantCreate: time.Unix(1769938200, 0),
		},
		{
			name:     "object id timestamp fallback",
			rec:      api.MessageRecord{MongoID: "65a1b2c3d4e5f60718293a4b", Message: "x", SenderID: "a", RecieverID: "b"},
			wantID:   "65a1b2c3d4e5f60718293a4b", wantRecv: "b", wantKind: chat.KindText, wantBody: "x", wantCreate: time.Unix(0x65a1b2c3, 0),
		},
		{
			name:     "clock fallback",
			rec:      api.MessageRecord{ID: "local-7", Message: "x", SenderID: "a", RecieverID: "b", CreatedAt: "yesterday"},
			wantID:   "local-7", wantRecv: "b", wantKind: chat.KindText, wantBody: "x", wantCreate: now,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NormalizeMessage(tt.rec, now)
			if err != nil {
				t.Fatalf("NormalizeMessage() error = %v", err)
			}
			if m.ID != tt.wantID || m.ReceiverID != tt.wantRecv || m.Kind != tt.wantKind || m.Body != tt.wantBody {
				t.Errorf("got %+v", m)
			}
			if !m.CreatedAt.Equal(tt.wantCreate) {
				t.Errorf("CreatedAt = %v, want %v", m.CreatedAt, tt.wantCreate)
			}
			if m.Status != chat.StatusConfirmed {
				t.Errorf("Status = %s, want confirmed", m.Status)
			}
			if m.ConversationKey != chat.ConversationKey("a", "b") {
				t.Errorf("ConversationKey = %q", m.ConversationKey)
			}
		})
	}
}

func TestNormalizeMessageMissingID(t *testing.T) {
	_, err := NormalizeMessage(api.MessageRecord{Message: "orphan"}, time.Now())
	if !errors.Is(err, ErrMissingID) {
		t.Errorf("error = %v, want ErrMissingID", err)
	}
}

func TestToRecordNormalizesBack(t *testing.T) {
	orig := chat.Message{
		ID: "m1", SenderID: "a", ReceiverID: "b", Kind: chat.KindImage,
		Body: "https://cdn/y.png", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 5, time.UTC),
	}
	back, err := NormalizeMessage(ToRecord(orig), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != orig.ID || back.Body != orig.Body || back.Kind != orig.Kind || !back.CreatedAt.Equal(orig.CreatedAt) {
		t.Errorf("round trip = %+v, want %+v", back, orig)
	}
}
