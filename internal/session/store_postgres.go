package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
	"appraiser-gateway/pkg/platform/tx"
)

// PostgresStore persists sessions in the appraisal_sessions table. The
// appraiser binding lives in a jsonb column updated after creation.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn resolves the active querier: a context-carried transaction when one
// is running, the pool otherwise.
func (s *PostgresStore) conn(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// RunInTx executes fn inside a single transaction. Store calls made with the
// context fn receives join that transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = t.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, t)); err != nil {
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const createSessionQuery = `
INSERT INTO appraisal_sessions (session_id, created_at)
VALUES ($1, $2)`

func (s *PostgresStore) Create(ctx context.Context) (id.SessionID, error) {
	sessionID := id.NewSessionID()
	if _, err := s.conn(ctx).ExecContext(ctx, createSessionQuery, sessionID.String(), time.Now().UTC()); err != nil {
		return id.SessionID{}, fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

const bindSessionQuery = `
UPDATE appraisal_sessions
SET appraiser_data = $2, bound_at = $3
WHERE session_id = $1`

func (s *PostgresStore) Bind(ctx context.Context, sessionID id.SessionID, appraiser AppraiserRecord) error {
	data, err := json.Marshal(appraiser)
	if err != nil {
		return fmt.Errorf("marshal appraiser record: %w", err)
	}

	result, err := s.conn(ctx).ExecContext(ctx, bindSessionQuery, sessionID.String(), data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return nil
}

const getSessionQuery = `
SELECT session_id, appraiser_data, created_at
FROM appraisal_sessions
WHERE session_id = $1`

func (s *PostgresStore) Get(ctx context.Context, sessionID id.SessionID) (Record, error) {
	var (
		rawID     string
		data      []byte
		createdAt time.Time
	)
	err := s.conn(ctx).QueryRowContext(ctx, getSessionQuery, sessionID.String()).Scan(&rawID, &data, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return Record{}, fmt.Errorf("get session: %w", err)
	}

	parsedID, err := id.ParseSessionID(rawID)
	if err != nil {
		return Record{}, fmt.Errorf("get session: %w", err)
	}
	record := Record{
		ID:        parsedID,
		CreatedAt: createdAt,
	}
	if len(data) > 0 {
		var appraiser AppraiserRecord
		if err := json.Unmarshal(data, &appraiser); err != nil {
			return Record{}, fmt.Errorf("unmarshal appraiser record: %w", err)
		}
		record.Appraiser = &appraiser
	}
	return record, nil
}

const deleteSessionQuery = `
DELETE FROM appraisal_sessions
WHERE session_id = $1`

func (s *PostgresStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	result, err := s.conn(ctx).ExecContext(ctx, deleteSessionQuery, sessionID.String())
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return nil
}
