package chat

import (
	"errors"
	"fmt"
	"testing"
)

func TestConversationKeyOrderIndependent(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"alice", "bob", "alice:bob"},
		{"bob", "alice", "alice:bob"},
		{"u1", "u1", "u1:u1"},
		{"", "x", ":x"},
	}
	for _, tt := range tests {
		t.Run(tt.a+"-"+tt.b, func(t *testing.T) {
			if got := ConversationKey(tt.a, tt.b); got != tt.want {
				t.Errorf("ConversationKey(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMessageInvolves(t *testing.T) {
	m := Message{SenderID: "a", ReceiverID: "b"}
	if !m.Involves("a") || !m.Involves("b") {
		t.Error("Involves should match sender and receiver")
	}
	if m.Involves("c") {
		t.Error("Involves(c) = true, want false")
	}
	if m.Involves("") {
		t.Error("Involves(\"\") = true, want false")
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := Network("send text", errors.New("connection refused"))
	wrapped := fmt.Errorf("send: %w", base)

	if got := KindOf(wrapped); got != KindNetwork {
		t.Errorf("KindOf = %v, want network", got)
	}
	if !IsKind(wrapped, KindNetwork) {
		t.Error("IsKind(wrapped, KindNetwork) = false")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain error should be KindUnknown")
	}
	if IsKind(nil, KindUnknown) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"validation", Validation("send image", "file too large"), "send image: file too large"},
		{"wrapped cause", Network("fetch history", errors.New("timeout")), "fetch history: timeout"},
		{"msg and cause", Auth("login", errors.New("401")), "login: not authorized: 401"},
		{"no op", &Error{Msg: "boom"}, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
