package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xhad/askdocs/internal/models"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

type SessionStoreConfig struct {
	TableName           string
	QueryTimeoutSeconds int
}

// SessionStore persists chat sessions as an append-only JSONB message
// log. Prior entries are never mutated; a turn appends its user
// message at the start and its assistant message on completion.
type SessionStore struct {
	config SessionStoreConfig
	pool   *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool, config SessionStoreConfig) (*SessionStore, error) {
	if config.TableName == "" {
		config.TableName = "chat_sessions"
	}

	s := &SessionStore{config: config, pool: pool}

	if err := s.initialize(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *SessionStore) initialize() error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			model TEXT NOT NULL,
			system_prompt TEXT NOT NULL DEFAULT '',
			messages JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.config.TableName)

	if _, err := s.pool.Exec(context.Background(), createTable); err != nil {
		return fmt.Errorf("failed to create session table: %w", err)
	}

	return nil
}

func (s *SessionStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.QueryTimeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(s.config.QueryTimeoutSeconds)*time.Second)
	}
	return context.WithCancel(ctx)
}

// Create inserts a new empty session and returns it.
func (s *SessionStore) Create(ctx context.Context, title, model, systemPrompt string) (*models.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	session := &models.Session{
		ID:           uuid.NewString(),
		Title:        title,
		Model:        model,
		SystemPrompt: systemPrompt,
		Messages:     []models.Message{},
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, model, system_prompt)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`, s.config.TableName)

	err := s.pool.QueryRow(ctx, query, session.ID, session.Title, session.Model, session.SystemPrompt).
		Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Get loads a session snapshot including its full message log.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, title, model, system_prompt, messages, created_at, updated_at
		FROM %s WHERE id = $1`, s.config.TableName)

	var session models.Session
	var messages []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.Title,
		&session.Model,
		&session.SystemPrompt,
		&messages,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := json.Unmarshal(messages, &session.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode session messages: %w", err)
	}

	return &session, nil
}

// Append atomically appends messages to the session log. One call per
// write; prior entries are untouched.
func (s *SessionStore) Append(ctx context.Context, id string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	encoded, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET messages = messages || $2::jsonb, updated_at = now()
		WHERE id = $1`, s.config.TableName)

	tag, err := s.pool.Exec(ctx, query, id, encoded)
	if err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// Healthy reports whether the session table is reachable.
func (s *SessionStore) Healthy(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}
