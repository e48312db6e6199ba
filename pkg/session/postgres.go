package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// registers the "postgres" driver used by sql.Open
	_ "github.com/lib/pq"

	"github.com/kadirpekel/sentinel/pkg/message"
)

// postgresStore is the external transactional Store implementation.
// Each row holds one message; Append writes the user and assistant
// rows inside one transaction so a crash mid-write cannot leave a
// question without its answer.
type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-opened *sql.DB. Callers own the
// DB's lifecycle (including calling db.Close).
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

// Schema expected to already exist (migrations are the operator's
// concern, per spec.md's Non-goals on persistent storage concerns):
//
//	CREATE TABLE IF NOT EXISTS sentinel_messages (
//	    id           BIGSERIAL PRIMARY KEY,
//	    session_id   TEXT NOT NULL,
//	    seq          BIGINT NOT NULL,
//	    role         TEXT NOT NULL,
//	    text         TEXT NOT NULL,
//	    tool_call_id TEXT NOT NULL DEFAULT '',
//	    tool_calls   JSONB,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX IF NOT EXISTS sentinel_messages_session_idx
//	    ON sentinel_messages (session_id, seq);

func (s *postgresStore) GetMessages(ctx context.Context, sessionID string) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text, tool_call_id, tool_calls
		FROM sentinel_messages
		WHERE session_id = $1
		ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, &StorageError{Op: "GetMessages", Err: err}
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		var m message.Message
		var role, toolCallID string
		var toolCallsJSON []byte
		if err := rows.Scan(&role, &m.Text, &toolCallID, &toolCallsJSON); err != nil {
			return nil, &StorageError{Op: "GetMessages", Err: err}
		}
		m.Role = message.Role(role)
		m.ToolCallID = toolCallID
		if len(toolCallsJSON) > 0 {
			if err := json.Unmarshal(toolCallsJSON, &m.ToolCalls); err != nil {
				return nil, &StorageError{Op: "GetMessages", Err: err}
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "GetMessages", Err: err}
	}
	return out, nil
}

func (s *postgresStore) Append(ctx context.Context, sessionID string, user, assistant message.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "Append", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	// Serialize Appends to the same session for the rest of this
	// transaction, so two writers cannot read the same next seq.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID); err != nil {
		return &StorageError{Op: "Append", Err: err}
	}

	var nextSeq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM sentinel_messages WHERE session_id = $1
	`, sessionID).Scan(&nextSeq); err != nil {
		return &StorageError{Op: "Append", Err: err}
	}

	for i, m := range []message.Message{user, assistant} {
		toolCallsJSON, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return &StorageError{Op: "Append", Err: err}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sentinel_messages (session_id, seq, role, text, tool_call_id, tool_calls)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, sessionID, nextSeq+int64(i), string(m.Role), m.Text, m.ToolCallID, toolCallsJSON); err != nil {
			return &StorageError{Op: "Append", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "Append", Err: err}
	}
	return nil
}

func (s *postgresStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sentinel_messages WHERE session_id = $1`, sessionID); err != nil {
		return &StorageError{Op: "Clear", Err: err}
	}
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, sessionID string) error {
	return s.Clear(ctx, sessionID)
}

func (s *postgresStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM sentinel_messages`)
	if err != nil {
		return nil, &StorageError{Op: "ListSessions", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StorageError{Op: "ListSessions", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *postgresStore) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sentinel_messages WHERE session_id = $1
	`, sessionID).Scan(&count); err != nil {
		return 0, &StorageError{Op: "MessageCount", Err: err}
	}
	return count, nil
}

var _ Store = (*postgresStore)(nil)

// Ping is a small convenience used at startup to fail fast on a bad DSN.
func Ping(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("session: postgres ping: %w", err)
	}
	return nil
}
