package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/auth"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/outbox"
	intsync "github.com/matheus3301/chatflow/internal/sync"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeConversations struct {
	selected []chat.Contact
	images   []chat.ImageFile
	snap     intsync.Snapshot
}

func (f *fakeConversations) SelectConversation(_ context.Context, peer chat.Contact) error {
	f.selected = append(f.selected, peer)
	return nil
}

func (f *fakeConversations) SendText(context.Context, string) error { return nil }

func (f *fakeConversations) SendImage(_ context.Context, img chat.ImageFile) error {
	f.images = append(f.images, img)
	return nil
}

func (f *fakeConversations) DeleteMessage(context.Context, string) error { return nil }
func (f *fakeConversations) SetDraft(string)                              {}
func (f *fakeConversations) Snapshot() intsync.Snapshot                   { return f.snap }

type fakeContacts struct{ list []chat.Contact }

func (f *fakeContacts) Fetch(context.Context) ([]chat.Contact, error) { return f.list, nil }
func (f *fakeContacts) Contacts() []chat.Contact                      { return f.list }

func (f *fakeContacts) Lookup(id string) (chat.Contact, bool) {
	for _, c := range f.list {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Contact{}, false
}

type fakeAccounts struct{ form auth.RegisterForm }

func (f *fakeAccounts) Login(context.Context, string, string) (*chat.Session, error) {
	return &chat.Session{Token: "tok"}, nil
}

func (f *fakeAccounts) Register(_ context.Context, form auth.RegisterForm) (*auth.PendingVerification, error) {
	f.form = form
	return &auth.PendingVerification{Email: form.Email}, nil
}

func (f *fakeAccounts) VerifyCode(context.Context, string, string) (*chat.Session, error) {
	return nil, nil
}

func (f *fakeAccounts) Logout() error { return nil }

type fakeIdentity struct{ sess *chat.Session }

func (f fakeIdentity) Current() *chat.Session { return f.sess }

func newTestViewModel() (*ViewModel, *fakeConversations, *fakeAccounts) {
	conv := &fakeConversations{}
	acc := &fakeAccounts{}
	contacts := &fakeContacts{list: []chat.Contact{{ID: "bob", Name: "Bob"}}}
	id := fakeIdentity{sess: &chat.Session{Token: "tok", User: chat.User{ID: "me", Name: "Ada"}}}
	return NewViewModel(conv, contacts, acc, id), conv, acc
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSendImageFileSniffsType(t *testing.T) {
	vm, conv, _ := newTestViewModel()
	path := writeFile(t, "cat.bin", pngHeader)

	if err := vm.SendImageFile(context.Background(), path); err != nil {
		t.Fatalf("SendImageFile() error = %v", err)
	}
	if len(conv.images) != 1 {
		t.Fatalf("sent %d images, want 1", len(conv.images))
	}
	img := conv.images[0]
	if img.Name != "cat.bin" || img.ContentType != "image/png" || img.Size() != int64(len(pngHeader)) {
		t.Errorf("image = %s %s %d", img.Name, img.ContentType, img.Size())
	}
}

func TestReadImageRejections(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, "big.png", make([]byte, 2048))

	tests := []struct {
		name string
		path string
	}{
		{"empty path", "  "},
		{"missing", filepath.Join(dir, "nope.png")},
		{"directory", dir},
		{"over limit", big},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadImage("send image", tt.path, 1024)
			if !chat.IsKind(err, chat.KindValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestRegisterReadsAvatar(t *testing.T) {
	vm, _, acc := newTestViewModel()
	path := writeFile(t, "me.png", pngHeader)

	_, err := vm.Register(context.Background(), auth.RegisterForm{Name: "Ada", Email: "ada@example.com"}, path)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if acc.form.Avatar == nil || acc.form.Avatar.ContentType != "image/png" {
		t.Errorf("avatar = %+v", acc.form.Avatar)
	}

	if _, err := vm.Register(context.Background(), auth.RegisterForm{Name: "Ada"}, ""); err != nil {
		t.Fatal(err)
	}
	if acc.form.Avatar != nil {
		t.Error("avatar set without a path")
	}
}

func TestOpenAndRetry(t *testing.T) {
	vm, conv, _ := newTestViewModel()
	ctx := context.Background()

	if err := vm.Retry(ctx); !errors.Is(err, intsync.ErrNoConversation) {
		t.Errorf("Retry() without conversation = %v", err)
	}
	if err := vm.OpenByID(ctx, "carol"); !chat.IsKind(err, chat.KindValidation) {
		t.Errorf("OpenByID(unknown) = %v, want validation", err)
	}
	if err := vm.OpenByID(ctx, "bob"); err != nil {
		t.Fatal(err)
	}

	conv.snap.Peer = &chat.Contact{ID: "bob", Name: "Bob"}
	if err := vm.Retry(ctx); err != nil {
		t.Fatal(err)
	}
	if len(conv.selected) != 2 || conv.selected[1].ID != "bob" {
		t.Errorf("selected = %+v", conv.selected)
	}
	if vm.SelfID() != "me" {
		t.Errorf("SelfID() = %q", vm.SelfID())
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", chat.Auth("login", &api.StatusError{Code: 401, Message: "Invalid credentials"}), "Invalid credentials"},
		{"in flight", fmt.Errorf("send: %w", outbox.ErrInFlight), "Still sending the previous message."},
		{"empty", intsync.ErrEmptyMessage, "Type a message first."},
		{"validation", chat.Validation("login", "password is required"), "Password is required"},
		{"network", chat.Network("send", errors.New("dial tcp")), "Could not reach the server. Check your connection."},
		{"auth", chat.Auth("send", errors.New("expired")), "Not authorized. Please log in again."},
		{"plain", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}
