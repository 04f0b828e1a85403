// Package auth runs the login, registration, verification and logout flows.
package auth

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"go.uber.org/zap"
)

// API is the account surface of the chat server.
type API interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, r api.RegisterRequest) (*api.RegisterResponse, error)
	VerifyOTP(ctx context.Context, email, otp string) (*api.VerifyResponse, error)
}

// Sessions persists the session.
type Sessions interface {
	Current() *chat.Session
	Save(s chat.Session) error
	Clear() error
	IsAuthenticated() bool
}

// Connector owns the realtime connection.
type Connector interface {
	Connect(userID, token string)
	Disconnect()
}

// Resetter drops per-session in-memory state.
type Resetter interface {
	Reset()
}

// PendingVerification is returned by Register until the code is verified.
type PendingVerification struct {
	Email   string
	Message string
}

// Service coordinates the session lifecycle.
type Service struct {
	api       API
	sessions  Sessions
	conn      Connector
	resetters []Resetter
	bus       *bus.Bus
	logger    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates an auth service. resetters are cleared on logout.
func NewService(a API, sessions Sessions, conn Connector, b *bus.Bus, logger *zap.Logger, resetters ...Resetter) *Service {
	return &Service{
		api:       a,
		sessions:  sessions,
		conn:      conn,
		resetters: resetters,
		bus:       b,
		logger:    logger,
	}
}

// Start forces a logout whenever a request reports an expired session.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	ch, unsub := s.bus.Subscribe(bus.SessionExpired, 8)

	go func() {
		defer close(s.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if s.sessions.Current() == nil {
					continue
				}
				err, _ := evt.Payload.(error)
				s.logger.Warn("session expired, logging out", zap.Error(err))
				if err := s.Logout(); err != nil {
					s.logger.Error("forced logout failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops watching for expiry.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Resume reconnects a persisted session. An expired one is cleared.
func (s *Service) Resume() bool {
	sess := s.sessions.Current()
	if sess == nil {
		return false
	}
	if !s.sessions.IsAuthenticated() {
		s.logger.Info("stored session expired")
		if err := s.Logout(); err != nil {
			s.logger.Error("failed to clear expired session", zap.Error(err))
		}
		return false
	}
	s.logger.Info("resuming session", zap.String("user_id", sess.User.ID))
	s.conn.Connect(sess.User.ID, sess.Token)
	s.bus.Emit(bus.SessionStarted, *sess)
	return true
}

// Login authenticates and starts a session.
func (s *Service) Login(ctx context.Context, email, password string) (*chat.Session, error) {
	if err := ValidateLogin(email, password); err != nil {
		return nil, err
	}
	resp, err := s.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, chat.Auth("login", errors.New("no token in response"))
	}
	return s.begin(resp.Token, resp.User)
}

// Register creates an account that must be verified with VerifyCode.
func (s *Service) Register(ctx context.Context, f RegisterForm) (*PendingVerification, error) {
	if err := ValidateRegistration(f); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(f.Email)
	resp, err := s.api.Register(ctx, api.RegisterRequest{
		Name:        strings.TrimSpace(f.Name),
		Email:       email,
		PhoneNumber: strings.TrimSpace(f.Phone),
		Password:    f.Password,
		Image:       f.Avatar,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("registration pending verification", zap.String("email", email))
	return &PendingVerification{Email: email, Message: resp.Message}, nil
}

// VerifyCode confirms a registration. When the server issues a session on
// verification it is started and returned; otherwise the result is nil and
// the caller should log in.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*chat.Session, error) {
	if err := ValidateCode(email, code); err != nil {
		return nil, err
	}
	resp, err := s.api.VerifyOTP(ctx, strings.TrimSpace(email), strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, nil
	}
	return s.begin(resp.Token, *resp.User)
}

func (s *Service) begin(token string, rec api.UserRecord) (*chat.Session, error) {
	user := UserFromRecord(rec)
	if user.ID == "" {
		return nil, fmt.Errorf("start session: response has no user id")
	}
	sess := chat.Session{Token: token, User: user}
	if err := s.sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	s.conn.Connect(user.ID, token)
	s.logger.Info("session started", zap.String("user_id", user.ID))
	s.bus.Emit(bus.SessionStarted, sess)
	return &sess, nil
}

// Logout clears the credential and per-session state, then tears down the
// realtime connection. It makes no server call.
func (s *Service) Logout() error {
	err := s.sessions.Clear()
	for _, r := range s.resetters {
		r.Reset()
	}
	s.conn.Disconnect()
	s.logger.Info("logged out")
	s.bus.Emit(bus.SessionEnded, nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// UserFromRecord maps a server user record onto the session identity.
func UserFromRecord(rec api.UserRecord) chat.User {
	return chat.User{
		ID:     cmp.Or(string(rec.ID), string(rec.MongoID)),
		Name:   cmp.Or(rec.Name, rec.Username),
		Email:  rec.Email,
		Phone:  cmp.Or(rec.Phone, rec.PhoneNumber),
		Avatar: cmp.Or(rec.Image, rec.ProfilePicture),
	}
}
