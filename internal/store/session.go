package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatflow/internal/chat"
)

// LoadSession returns the persisted session, or nil if none is stored.
func (db *DB) LoadSession() (*chat.Session, error) {
	var s chat.Session
	err := db.QueryRow(`SELECT token, user_id, name, email, phone, avatar FROM session WHERE id = 1`).
		Scan(&s.Token, &s.User.ID, &s.User.Name, &s.User.Email, &s.User.Phone, &s.User.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &s, nil
}

// SaveSession replaces the persisted session.
func (db *DB) SaveSession(s *chat.Session) error {
	_, err := db.Exec(`
		INSERT INTO session (id, token, user_id, name, email, phone, avatar, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			avatar = excluded.avatar,
			updated_at = excluded.updated_at`,
		s.Token, s.User.ID, s.User.Name, s.User.Email, s.User.Phone, s.User.Avatar, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession removes the persisted session and the cached contact list.
func (db *DB) ClearSession() error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM contacts`); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}
	return tx.Commit()
}
