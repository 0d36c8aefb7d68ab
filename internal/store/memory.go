package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vanmaster/vanmaster/internal/profile"
)

// memoryLimit caps how many trailing messages survive as AI memory.
const memoryLimit = 15

// SaveChatMemory replaces the user's persisted chat memory with the
// last messages of the conversation.
func (s *Store) SaveChatMemory(ctx context.Context, uid string, messages []profile.MemoryMessage) error {
	if len(messages) > memoryLimit {
		messages = messages[len(messages)-memoryLimit:]
	}
	if messages == nil {
		messages = []profile.MemoryMessage{}
	}

	encoded, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode chat memory: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_memory (uid, messages_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			messages_json = excluded.messages_json,
			updated_at = excluded.updated_at`,
		uid, string(encoded), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save chat memory: %w", err)
	}
	return nil
}

// LoadChatMemory returns the persisted chat memory, or an empty slice
// when the user has none yet.
func (s *Store) LoadChatMemory(ctx context.Context, uid string) ([]profile.MemoryMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT messages_json FROM chat_memory WHERE uid = ?`, uid)

	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []profile.MemoryMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat memory: %w", err)
	}

	var messages []profile.MemoryMessage
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode chat memory: %w", err)
	}
	return messages, nil
}
