package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/chatflow/internal/auth"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/config"
	"github.com/matheus3301/chatflow/internal/lock"
	"github.com/matheus3301/chatflow/internal/profile"
	"github.com/matheus3301/chatflow/internal/session"
	"github.com/matheus3301/chatflow/internal/store"
	intsync "github.com/matheus3301/chatflow/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func testParams(t *testing.T) Params {
	t.Helper()
	t.Setenv("CHATFLOW_HOME", t.TempDir())
	cfg := config.Default()
	cfg.Server.BaseURL = "http://127.0.0.1:1"
	cfg.Server.SocketURL = "ws://127.0.0.1:1/ws"
	return Params{Profile: "test", Config: cfg}
}

func TestLifecycleWithoutSession(t *testing.T) {
	p := testParams(t)

	var (
		engine   *intsync.Engine
		authSvc  *auth.Service
		sessions *session.Store
	)
	app := fxtest.New(t, Module(p), fx.Populate(&engine, &authSvc, &sessions))
	app.RequireStart()

	if sessions.IsAuthenticated() {
		t.Error("fresh profile reports an authenticated session")
	}
	if got := engine.Mode(); got != intsync.ModeDegraded {
		t.Errorf("mode = %s, want %s", got, intsync.ModeDegraded)
	}

	app.RequireStop()

	// The lock must be free again once the app stops.
	lk, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		t.Fatalf("lock still held after stop: %v", err)
	}
	_ = lk.Release()
}

func TestSecondInstanceRejected(t *testing.T) {
	p := testParams(t)

	first := fxtest.New(t, Module(p))
	first.RequireStart()
	defer first.RequireStop()

	second := fx.New(Module(p), fx.NopLogger)
	err := second.Err()
	if err == nil {
		_ = second.Stop(context.Background())
		t.Fatal("second instance on the same profile started")
	}
	if !strings.Contains(err.Error(), "profile in use") {
		t.Errorf("err = %v, want lock held error", err)
	}
}

func TestLifecycleResumesStoredSession(t *testing.T) {
	p := testParams(t)
	if err := profile.EnsureDir(p.Profile); err != nil {
		t.Fatal(err)
	}
	db, err := store.Open(profile.DBPath(p.Profile))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	stored := &chat.Session{Token: "opaque-token", User: chat.User{ID: "u1", Name: "Ada"}}
	if err := db.SaveSession(stored); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	var b *bus.Bus
	var sessions *session.Store
	app := fxtest.New(t, Module(p), fx.Populate(&b, &sessions))

	ch, unsub := b.Subscribe("session.", 4)
	defer unsub()

	app.RequireStart()
	defer app.RequireStop()

	select {
	case evt := <-ch:
		if evt.Kind != bus.SessionStarted {
			t.Fatalf("event = %s, want %s", evt.Kind, bus.SessionStarted)
		}
		sess, ok := evt.Payload.(chat.Session)
		if !ok || sess.User.ID != "u1" {
			t.Errorf("payload = %#v", evt.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session.started")
	}
	if sessions.UserID() != "u1" {
		t.Errorf("UserID() = %q, want u1", sessions.UserID())
	}
}
