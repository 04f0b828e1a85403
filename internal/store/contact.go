package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/chatflow/internal/chat"
)

// ReplaceContacts overwrites the cached contact list in one transaction,
// keeping the server's ordering.
func (db *DB) ReplaceContacts(contacts []chat.Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM contacts`); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}

	now := time.Now().UnixMilli()
	for i, c := range contacts {
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, position, name, avatar, status, last_message, last_activity, unread, email, phone, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			c.ID, i, c.Name, c.Avatar, c.Status, c.LastMessage, toMillis(c.LastActivity), c.Unread, c.Email, c.Phone, now); err != nil {
			return fmt.Errorf("insert contact %q: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contacts: %w", err)
	}
	return nil
}

// ListContacts returns the cached contact list in server order.
func (db *DB) ListContacts() ([]chat.Contact, error) {
	rows, err := db.Query(`
		SELECT id, name, avatar, status, last_message, last_activity, unread, email, phone
		FROM contacts ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []chat.Contact
	for rows.Next() {
		var c chat.Contact
		var lastActivity int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Avatar, &c.Status, &c.LastMessage, &lastActivity, &c.Unread, &c.Email, &c.Phone); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.LastActivity = fromMillis(lastActivity)
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// ContactCount returns the number of cached contacts.
func (db *DB) ContactCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}
