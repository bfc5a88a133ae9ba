// Package sqlite implements the local intent tier on an embedded SQLite file.
// It survives process restarts without depending on the staging database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/sqlite/migrations"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// LocalStore keeps one pending intent per actor.
type LocalStore struct {
	db *sql.DB
}

// Open opens and migrates the store at path. The parent directory must exist.
func Open(ctx context.Context, path string) (*LocalStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("local store path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &LocalStore{db: db}, nil
}

// Close releases the underlying connection.
func (s *LocalStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database file is reachable.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *LocalStore) Name() intent.Tier { return intent.TierLocal }

func (s *LocalStore) Save(ctx context.Context, in *intent.Intent) error {
	payload, err := json.Marshal(in.Draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_intents (actor_id, intent_id, payload_json, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(actor_id) DO UPDATE SET
		    intent_id = excluded.intent_id,
		    payload_json = excluded.payload_json,
		    created_at = excluded.created_at,
		    expires_at = excluded.expires_at`,
		in.ActorID, in.ID.String(), payload, in.CreatedAt.UTC().UnixMilli(), in.ExpiresAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert local intent: %w", err)
	}
	return nil
}

func (s *LocalStore) Load(ctx context.Context, actorID string) (*intent.Intent, error) {
	var (
		id        string
		payload   []byte
		createdAt int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT intent_id, payload_json, created_at, expires_at
		 FROM pending_intents WHERE actor_id = ?`, actorID,
	).Scan(&id, &payload, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.ErrIntentNotFound
		}
		return nil, fmt.Errorf("load local intent: %w", err)
	}

	intentID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse local intent id: %w", err)
	}
	var draft trip.Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return nil, fmt.Errorf("unmarshal local draft: %w", err)
	}
	return &intent.Intent{
		ID:        intentID,
		ActorID:   actorID,
		Draft:     draft,
		CreatedAt: time.UnixMilli(createdAt).UTC(),
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
	}, nil
}

func (s *LocalStore) Delete(ctx context.Context, actorID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_intents WHERE actor_id = ?`, actorID); err != nil {
		return fmt.Errorf("delete local intent: %w", err)
	}
	return nil
}

// DeleteExpired removes intents that expired at or before now.
func (s *LocalStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_intents WHERE expires_at <= ?`, now.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired local intents: %w", err)
	}
	return res.RowsAffected()
}
