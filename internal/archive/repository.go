// Package archive stores completed exchanges in Postgres for later
// review. The archive is optional: when no database is configured the
// assistant runs without it.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
)

// Exchange is one archived question/answer pair.
type Exchange struct {
	ID         int64     `json:"id"`
	UUID       uuid.UUID `json:"uuid"`
	SessionID  string    `json:"session_id"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	PromptMode string    `json:"prompt_mode"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository persists exchanges.
type Repository struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

// NewRepository creates a repository on an existing pool.
func NewRepository(db *pgxpool.Pool, logger logger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Connect opens a pool, verifies connectivity, and applies migrations.
func Connect(ctx context.Context, databaseURL string, log logger.Logger) (*Repository, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrations := NewMigrationManager(pool, log)
	defer func() { _ = migrations.Close() }()
	if err := migrations.RunMigrations(); err != nil {
		pool.Close()
		return nil, err
	}

	return NewRepository(pool, log), nil
}

// SaveExchange archives one exchange.
func (r *Repository) SaveExchange(ctx context.Context, sessionID, query, answer, promptMode string) (*Exchange, error) {
	exchange := Exchange{
		UUID:       uuid.New(),
		SessionID:  sessionID,
		Query:      query,
		Answer:     answer,
		PromptMode: promptMode,
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO exchanges (uuid, session_id, query, answer, prompt_mode)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		exchange.UUID, exchange.SessionID, exchange.Query, exchange.Answer, exchange.PromptMode,
	)
	if err := row.Scan(&exchange.ID, &exchange.CreatedAt); err != nil {
		r.logger.Error("failed to archive exchange",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
		return nil, fmt.Errorf("archive exchange: %w", err)
	}

	return &exchange, nil
}

// RecentExchanges returns the newest exchanges for a session.
func (r *Repository) RecentExchanges(ctx context.Context, sessionID string, limit int32) ([]Exchange, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, uuid, session_id, query, answer, prompt_mode, created_at
		 FROM exchanges
		 WHERE session_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		r.logger.Error("failed to list archived exchanges", logger.ErrorField(err))
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.ID, &e.UUID, &e.SessionID, &e.Query, &e.Answer, &e.PromptMode, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, e)
	}
	return exchanges, rows.Err()
}

// Close releases the connection pool.
func (r *Repository) Close() {
	r.db.Close()
}
