// Package model is the presentation state between the views and the
// client services. Everything here is safe to call from any goroutine; the
// views only ever see copies.
package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/auth"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/format"
	"github.com/matheus3301/chatflow/internal/outbox"
	intsync "github.com/matheus3301/chatflow/internal/sync"
)

// Conversations is the sync engine surface driven by the views.
type Conversations interface {
	SelectConversation(ctx context.Context, peer chat.Contact) error
	SendText(ctx context.Context, body string) error
	SendImage(ctx context.Context, img chat.ImageFile) error
	DeleteMessage(ctx context.Context, id string) error
	SetDraft(text string)
	Snapshot() intsync.Snapshot
}

// Contacts is the contact directory surface.
type Contacts interface {
	Fetch(ctx context.Context) ([]chat.Contact, error)
	Contacts() []chat.Contact
	Lookup(id string) (chat.Contact, bool)
}

// Accounts runs the session flows.
type Accounts interface {
	Login(ctx context.Context, email, password string) (*chat.Session, error)
	Register(ctx context.Context, f auth.RegisterForm) (*auth.PendingVerification, error)
	VerifyCode(ctx context.Context, email, code string) (*chat.Session, error)
	Logout() error
}

// Identity exposes the current session.
type Identity interface {
	Current() *chat.Session
}

// ViewModel turns view intents into service calls.
type ViewModel struct {
	conv     Conversations
	contacts Contacts
	accounts Accounts
	identity Identity
}

// NewViewModel creates a view model over the client services.
func NewViewModel(conv Conversations, contacts Contacts, accounts Accounts, id Identity) *ViewModel {
	return &ViewModel{
		conv:     conv,
		contacts: contacts,
		accounts: accounts,
		identity: id,
	}
}

// Self returns the logged-in user, or nil.
func (vm *ViewModel) Self() *chat.User {
	if s := vm.identity.Current(); s != nil {
		u := s.User
		return &u
	}
	return nil
}

// SelfID returns the logged-in user id, or "".
func (vm *ViewModel) SelfID() string {
	if u := vm.Self(); u != nil {
		return u.ID
	}
	return ""
}

// LoadContacts refreshes the directory. On failure the last known list is
// returned with the error.
func (vm *ViewModel) LoadContacts(ctx context.Context) ([]chat.Contact, error) {
	return vm.contacts.Fetch(ctx)
}

// Contacts returns the current contact list.
func (vm *ViewModel) Contacts() []chat.Contact {
	return vm.contacts.Contacts()
}

// Open makes peer the active conversation.
func (vm *ViewModel) Open(ctx context.Context, peer chat.Contact) error {
	return vm.conv.SelectConversation(ctx, peer)
}

// OpenByID opens the conversation with a known contact.
func (vm *ViewModel) OpenByID(ctx context.Context, id string) error {
	peer, ok := vm.contacts.Lookup(id)
	if !ok {
		return chat.Validation("open conversation", "unknown contact")
	}
	return vm.Open(ctx, peer)
}

// Retry reloads the active conversation.
func (vm *ViewModel) Retry(ctx context.Context) error {
	s := vm.conv.Snapshot()
	if s.Peer == nil {
		return intsync.ErrNoConversation
	}
	return vm.Open(ctx, *s.Peer)
}

// Snapshot returns the engine state.
func (vm *ViewModel) Snapshot() intsync.Snapshot {
	return vm.conv.Snapshot()
}

// SetDraft records composer edits.
func (vm *ViewModel) SetDraft(text string) {
	vm.conv.SetDraft(text)
}

// SendText sends a text message in the active conversation.
func (vm *ViewModel) SendText(ctx context.Context, body string) error {
	return vm.conv.SendText(ctx, body)
}

// SendImageFile reads path and sends it as an image.
func (vm *ViewModel) SendImageFile(ctx context.Context, path string) error {
	img, err := ReadImage("send image", path, intsync.MaxImageSize)
	if err != nil {
		return err
	}
	return vm.conv.SendImage(ctx, img)
}

// Delete removes a message from the active conversation.
func (vm *ViewModel) Delete(ctx context.Context, id string) error {
	return vm.conv.DeleteMessage(ctx, id)
}

// Login starts a session.
func (vm *ViewModel) Login(ctx context.Context, email, password string) (*chat.Session, error) {
	return vm.accounts.Login(ctx, email, password)
}

// Register submits a registration. avatarPath may be empty.
func (vm *ViewModel) Register(ctx context.Context, f auth.RegisterForm, avatarPath string) (*auth.PendingVerification, error) {
	if path := strings.TrimSpace(avatarPath); path != "" {
		img, err := ReadImage("register", path, auth.MaxAvatarSize)
		if err != nil {
			return nil, err
		}
		f.Avatar = &img
	}
	return vm.accounts.Register(ctx, f)
}

// Verify confirms a registration code.
func (vm *ViewModel) Verify(ctx context.Context, email, code string) (*chat.Session, error) {
	return vm.accounts.VerifyCode(ctx, email, code)
}

// Logout ends the session.
func (vm *ViewModel) Logout() error {
	return vm.accounts.Logout()
}

// ReadImage loads an image attachment from disk. Files over limit are
// rejected before being read; the content type is sniffed from the data.
func ReadImage(op, path string, limit int64) (chat.ImageFile, error) {
	path = expandHome(strings.TrimSpace(path))
	if path == "" {
		return chat.ImageFile{}, chat.Validation(op, "no file given")
	}
	info, err := os.Stat(path)
	if err != nil {
		return chat.ImageFile{}, chat.Validation(op, fmt.Sprintf("cannot open %s", filepath.Base(path)))
	}
	if info.IsDir() {
		return chat.ImageFile{}, chat.Validation(op, fmt.Sprintf("%s is a directory", filepath.Base(path)))
	}
	if info.Size() > limit {
		return chat.ImageFile{}, chat.Validation(op, fmt.Sprintf("%s is %s, the limit is %s",
			filepath.Base(path), format.FileSize(info.Size()), format.FileSize(limit)))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.ImageFile{}, fmt.Errorf("%s: read %s: %w", op, path, err)
	}
	return chat.ImageFile{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// Describe renders err for a flash message.
func Describe(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	switch {
	case errors.Is(err, outbox.ErrInFlight):
		return "Still sending the previous message."
	case errors.Is(err, intsync.ErrEmptyMessage):
		return "Type a message first."
	case errors.Is(err, intsync.ErrNoConversation):
		return "Open a conversation first."
	}
	var ce *chat.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case chat.KindValidation:
			if ce.Msg != "" {
				return capitalize(ce.Msg)
			}
		case chat.KindNetwork:
			return "Could not reach the server. Check your connection."
		case chat.KindAuth:
			return "Not authorized. Please log in again."
		}
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
