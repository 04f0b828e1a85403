package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/store"
)

func testStore(t *testing.T) (*Store, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func signed(t *testing.T, exp *time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "u1"}
	if exp != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*exp)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestSaveLoadClear(t *testing.T) {
	s, db := testStore(t)
	if s.IsAuthenticated() || s.Current() != nil || s.UserID() != "" {
		t.Fatal("new store should be logged out")
	}

	sess := chat.Session{Token: "opaque", User: chat.User{ID: "u1", Name: "Ana", Email: "ana@x.io"}}
	if err := s.Save(sess); err != nil {
		t.Fatal(err)
	}
	if s.Token() != "opaque" || s.UserID() != "u1" || !s.IsAuthenticated() {
		t.Errorf("after Save token=%q user=%q auth=%v", s.Token(), s.UserID(), s.IsAuthenticated())
	}

	reloaded := New(db)
	got, err := reloaded.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != sess {
		t.Errorf("Load() = %+v, want %+v", got, sess)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.IsAuthenticated() || s.Token() != "" {
		t.Error("still authenticated after Clear()")
	}
	if got, _ := New(db).Load(); got != nil {
		t.Errorf("session survived Clear(): %+v", got)
	}
}

func TestCurrentIsACopy(t *testing.T) {
	s, _ := testStore(t)
	if err := s.Save(chat.Session{Token: "t", User: chat.User{ID: "u1"}}); err != nil {
		t.Fatal(err)
	}
	c := s.Current()
	c.Token = "mutated"
	if s.Token() != "t" {
		t.Error("Current() exposed internal state")
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"opaque token", "not-a-jwt", false},
		{"no exp claim", signed(t, nil), false},
		{"expired", signed(t, &past), true},
		{"valid", signed(t, &future), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.token, now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAuthenticatedHonorsExpiry(t *testing.T) {
	s, _ := testStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	past := now.Add(-time.Second)

	if err := s.Save(chat.Session{Token: signed(t, &past), User: chat.User{ID: "u1"}}); err != nil {
		t.Fatal(err)
	}
	if s.IsAuthenticated() {
		t.Error("expired token counted as authenticated")
	}
}

type failingPersister struct{ err error }

func (f failingPersister) LoadSession() (*chat.Session, error) { return nil, f.err }
func (f failingPersister) SaveSession(*chat.Session) error     { return f.err }
func (f failingPersister) ClearSession() error                 { return f.err }

func TestPersistenceFailures(t *testing.T) {
	boom := errors.New("disk full")
	s := New(failingPersister{err: boom})

	if err := s.Save(chat.Session{Token: "t"}); !errors.Is(err, boom) {
		t.Errorf("Save() error = %v", err)
	}
	if s.Current() != nil {
		t.Error("failed Save() changed the current session")
	}
	if _, err := s.Load(); !errors.Is(err, boom) {
		t.Errorf("Load() error = %v", err)
	}
	if err := s.Clear(); !errors.Is(err, boom) {
		t.Errorf("Clear() error = %v", err)
	}
}
