package store

import (
	"context"
)

// AppendMessage records one turn of a conversation (spec §4.9's chat
// surface). contextPages is a JSON-encoded list of page slugs the
// context selector chose for this turn, or nil for user turns.
func (s *Store) AppendMessage(ctx context.Context, id, conversationID, role, content string, contextPages *string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, context_pages) VALUES (?, ?, ?, ?, ?)`,
		id, conversationID, role, content, contextPages)
	return err
}

// ListMessages returns a conversation's turns in chronological order,
// the shape the ReAct loop feeds back in as history.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, context_pages, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.ContextPages, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
