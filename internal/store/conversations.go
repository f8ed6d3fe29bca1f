package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/falconwiki/falcon/internal/apperrors"
)

// CreateConversation starts a new chat conversation scoped to a wiki
// (grounded on chat_service.py's get_or_create_conversation).
func (s *Store) CreateConversation(ctx context.Context, id, wikiID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO conversations (id, wiki_id) VALUES (?, ?)`, id, wikiID)
	return err
}

// GetConversation loads a conversation, or apperrors.NotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, wiki_id, created_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.WikiID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.NotFound, "conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns a wiki's conversations, newest first.
func (s *Store) ListConversations(ctx context.Context, wikiID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, wiki_id, created_at FROM conversations WHERE wiki_id = ? ORDER BY created_at DESC`, wikiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.WikiID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
