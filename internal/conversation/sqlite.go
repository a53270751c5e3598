package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/dominicdesy/intelia-expert/internal/entities"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL DEFAULT '',
	language       TEXT NOT NULL DEFAULT '',
	urgency        TEXT NOT NULL DEFAULT 'low',
	messages       TEXT NOT NULL DEFAULT '[]',
	consolidated   TEXT,
	clarification  TEXT NOT NULL DEFAULT '{}',
	created_at     INTEGER NOT NULL,
	last_activity  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_last_activity ON conversations(last_activity);
`

// SQLiteStore is a Store backed by SQLite. Messages, consolidated entities
// and clarification flags are JSON columns.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("conversation: create data dir: %w", err)
			}
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("conversation: open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("conversation: pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("conversation: migration: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger.Named("conversation.sqlite")}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, language, urgency, messages, consolidated, clarification, created_at, last_activity
		FROM conversations WHERE id = ?`, id)

	var (
		r             Record
		urgency       string
		messages      string
		consolidated  sql.NullString
		clarification string
		created, last int64
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Language, &urgency, &messages, &consolidated, &clarification, &created, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}

	r.Urgency = Urgency(urgency)
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.LastActivity = time.UnixMilli(last).UTC()
	if err := json.Unmarshal([]byte(messages), &r.Messages); err != nil {
		return nil, fmt.Errorf("decode messages of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(clarification), &r.Clarification); err != nil {
		return nil, fmt.Errorf("decode clarification of %s: %w", id, err)
	}
	if consolidated.Valid && consolidated.String != "" {
		var e entities.EntitySet
		if err := json.Unmarshal([]byte(consolidated.String), &e); err != nil {
			// The messages still carry their entities; start a fresh
			// consolidated set rather than failing the load.
			s.logger.Warn("dropping unreadable consolidated entities",
				zap.String("conversation.id", id),
				zap.Error(err),
			)
		} else {
			r.Consolidated = &e
		}
	}
	return FromRecord(r), nil
}

// Save implements Store. A field that cannot be serialized is left out of
// the row instead of failing the save.
func (s *SQLiteStore) Save(ctx context.Context, c *Conversation) error {
	if c.ID() == "" {
		return ErrEmptyID
	}
	r := c.Snapshot()

	messages, issues := marshalMessages(r.Messages)
	var consolidated sql.NullString
	if r.Consolidated != nil {
		if b, err := json.Marshal(r.Consolidated); err == nil {
			consolidated = sql.NullString{String: string(b), Valid: true}
		} else {
			issues = append(issues, serializationIssue("consolidated", err))
		}
	}
	clarification, err := json.Marshal(r.Clarification)
	if err != nil {
		return fmt.Errorf("encode clarification: %w", err)
	}
	for _, issue := range issues {
		s.logger.Warn("partial conversation record",
			zap.String("conversation.id", r.ID),
			zap.Stringer("issue", issue),
		)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, language, urgency, messages, consolidated, clarification, created_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			language = excluded.language,
			urgency = excluded.urgency,
			messages = excluded.messages,
			consolidated = excluded.consolidated,
			clarification = excluded.clarification,
			last_activity = excluded.last_activity`,
		r.ID, r.UserID, r.Language, string(r.Urgency), messages, consolidated, string(clarification),
		r.CreatedAt.UnixMilli(), r.LastActivity.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", r.ID, err)
	}
	return nil
}

// marshalMessages encodes msgs. A message whose entities cannot be encoded
// is stored without them.
func marshalMessages(msgs []Message) (string, []entities.Issue) {
	if b, err := json.Marshal(msgs); err == nil {
		return string(b), nil
	}
	var issues []entities.Issue
	out := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			issues = append(issues, serializationIssue("message "+m.ID, err))
			m.Entities = nil
			if b, err = json.Marshal(m); err != nil {
				continue
			}
		}
		out = append(out, b)
	}
	b, _ := json.Marshal(out)
	return string(b), issues
}

func serializationIssue(what string, err error) entities.Issue {
	return entities.Issue{Kind: entities.SerializationFailure, Detail: what + " left out", Original: err.Error()}
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// PurgeInactive implements Store.
func (s *SQLiteStore) PurgeInactive(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM conversations WHERE last_activity < ? RETURNING id`, before.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("purge conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("purge conversations: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purge conversations: %w", err)
	}
	return ids, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
