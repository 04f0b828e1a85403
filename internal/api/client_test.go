package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/chatflow/internal/chat"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, r http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second, TokenFunc(func() string { return token }), zap.NewNop())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body["email"] != "ada@example.com" || body["password"] != "secret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		if req.Header.Get("Authorization") != "" {
			t.Error("login must not send a bearer token")
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok",
			"user":  map[string]any{"_id": "u1", "name": "Ada"},
		})
	})
	c := newTestClient(t, r, "")

	resp, err := c.Login(context.Background(), "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token != "tok" || resp.User.MongoID != "u1" || resp.User.Name != "Ada" {
		t.Errorf("resp = %+v", resp)
	}

	_, err = c.Login(context.Background(), "ada@example.com", "wrong")
	if !chat.IsKind(err, chat.KindAuth) {
		t.Errorf("bad password error kind = %v, want auth (%v)", chat.KindOf(err), err)
	}
}

func TestAuthenticatedCallWithoutToken(t *testing.T) {
	called := false
	r := chi.NewRouter()
	r.Get("/users", func(w http.ResponseWriter, _ *http.Request) { called = true })
	c := newTestClient(t, r, "")

	_, err := c.Users(context.Background())
	if !chat.IsKind(err, chat.KindAuth) {
		t.Errorf("error kind = %v, want auth", chat.KindOf(err))
	}
	if called {
		t.Error("request reached the server without a token")
	}
}

func TestUsersAcceptsArrayAndWrapped(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"_id":"a","name":"Amy"},{"id":7,"username":"bob"}]`},
		{"wrapped", `{"users":[{"_id":"a","name":"Amy"},{"id":7,"username":"bob"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get("/users", func(w http.ResponseWriter, req *http.Request) {
				if req.Header.Get("Authorization") != "Bearer tok" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = io.WriteString(w, tt.body)
			})
			c := newTestClient(t, r, "tok")

			users, err := c.Users(context.Background())
			if err != nil {
				t.Fatalf("Users() error = %v", err)
			}
			if len(users) != 2 {
				t.Fatalf("got %d users, want 2", len(users))
			}
			if users[0].MongoID != "a" || users[1].ID != "7" || users[1].Username != "bob" {
				t.Errorf("users = %+v", users)
			}
		})
	}
}

func TestListsSkipMalformedRecords(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/users", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"users":[{"_id":"a","name":"Amy"},{"_id":"b","isOnline":"yes"},{"_id":"c","name":"Cal"}]}`)
	})
	r.Get("/messages/{peerID}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"_id":"m1","message":"hi"},{"_id":"m2","message":{"text":"odd"}},{"_id":"m3","message":"yo"}]`)
	})
	c := newTestClient(t, r, "tok")

	users, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 2 || users[0].MongoID != "a" || users[1].MongoID != "c" {
		t.Errorf("users = %+v, want a and c", users)
	}

	msgs, err := c.Messages(context.Background(), "p")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].MongoID != "m1" || msgs[1].MongoID != "m3" {
		t.Errorf("msgs = %+v, want m1 and m3", msgs)
	}
}

func TestMessagesEscapesPeer(t *testing.T) {
	var gotPeer string
	r := chi.NewRouter()
	r.Get("/messages/{peerID}", func(w http.ResponseWriter, req *http.Request) {
		gotPeer = chi.URLParam(req, "peerID")
		_, _ = io.WriteString(w, `[{"_id":"m1","message":"hi","senderId":"a","recieverId":"b","createdAt":"2026-01-01T10:00:00Z"}]`)
	})
	c := newTestClient(t, r, "tok")

	msgs, err := c.Messages(context.Background(), "peer-1")
	if err != nil {
		t.Fatal(err)
	}
	if gotPeer != "peer-1" {
		t.Errorf("peer = %q", gotPeer)
	}
	if len(msgs) != 1 || msgs[0].RecieverID != "b" || msgs[0].Message != "hi" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestSendMessageEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID Text
	}{
		{"wrapped", `{"message":"Message sent","newMessage":{"_id":"srv1","message":"hello"}}`, "srv1"},
		{"bare", `{"_id":"srv2","message":"hello"}`, "srv2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Post("/messages/sendMessage/{peerID}", func(w http.ResponseWriter, req *http.Request) {
				var body map[string]string
				_ = json.NewDecoder(req.Body).Decode(&body)
				if body["message"] != "hello" {
					t.Errorf("message = %q", body["message"])
				}
				_, _ = io.WriteString(w, tt.body)
			})
			c := newTestClient(t, r, "tok")

			rec, err := c.SendMessage(context.Background(), "b", "hello")
			if err != nil {
				t.Fatal(err)
			}
			if rec.MongoID != tt.wantID {
				t.Errorf("id = %q, want %q", rec.MongoID, tt.wantID)
			}
		})
	}
}

func TestSendFileMultipart(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/messages/sendFile/{peerID}", func(w http.ResponseWriter, req *http.Request) {
		file, hdr, err := req.FormFile("image")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() { _ = file.Close() }()
		data, _ := io.ReadAll(file)
		if hdr.Filename != "cat.png" || string(data) != "PNGDATA" {
			t.Errorf("file = %s (%q)", hdr.Filename, data)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("part content type = %q", ct)
		}
		_, _ = io.WriteString(w, `{"_id":"img1","file":"https://cdn/cat.png","type":"image"}`)
	})
	c := newTestClient(t, r, "tok")

	rec, err := c.SendFile(context.Background(), "b", chat.ImageFile{Name: "cat.png", ContentType: "image/png", Data: []byte("PNGDATA")})
	if err != nil {
		t.Fatal(err)
	}
	if rec.File != "https://cdn/cat.png" {
		t.Errorf("file = %q", rec.File)
	}
}

func TestRegisterMultipart(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/register", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
		}
		for field, want := range map[string]string{
			"name": "Ada", "email": "ada@example.com", "phoneNumber": "5551234567", "password": "secret1",
		} {
			if got := req.FormValue(field); got != want {
				t.Errorf("%s = %q, want %q", field, got, want)
			}
		}
		if _, _, err := req.FormFile("image"); err == nil {
			t.Error("unexpected image part")
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "OTP sent"})
	})
	c := newTestClient(t, r, "")

	resp, err := c.Register(context.Background(), RegisterRequest{
		Name: "Ada", Email: "ada@example.com", PhoneNumber: "5551234567", Password: "secret1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "OTP sent" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestDeleteClassification(t *testing.T) {
	tests := []struct {
		status int
		want   chat.ErrorKind
	}{
		{http.StatusOK, chat.KindUnknown},
		{http.StatusNotFound, chat.KindConflictOrNotFound},
		{http.StatusConflict, chat.KindConflictOrNotFound},
		{http.StatusUnauthorized, chat.KindAuth},
		{http.StatusUnprocessableEntity, chat.KindValidation},
		{http.StatusInternalServerError, chat.KindNetwork},
		{http.StatusBadGateway, chat.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			r := chi.NewRouter()
			r.Delete("/messages/deleteMessage/{id}", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, map[string]string{"message": "x"})
			})
			c := newTestClient(t, r, "tok")

			err := c.DeleteMessage(context.Background(), "m1")
			if tt.status < 400 {
				if err != nil {
					t.Fatalf("DeleteMessage() error = %v", err)
				}
				return
			}
			if got := chat.KindOf(err); got != tt.want {
				t.Errorf("kind = %v, want %v (%v)", got, tt.want, err)
			}
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, TokenFunc(func() string { return "tok" }), nil)
	_, err := c.Messages(context.Background(), "b")
	if !chat.IsKind(err, chat.KindNetwork) {
		t.Errorf("kind = %v, want network (%v)", chat.KindOf(err), err)
	}
}

func TestTextDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want Text
	}{
		{`"abc"`, "abc"},
		{`42`, "42"},
		{`null`, ""},
		{`{"$oid":"x"}`, ""},
	}
	for _, tt := range tests {
		var got Text
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
