package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"appraiser-gateway/internal/directory"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// PostgresStore persists appraisers in the appraisers table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registration store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

const insertAppraiserQuery = `
INSERT INTO appraisers (name, email, phone, bank_id, branch_id, appraisal_count, face_enrolled, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`

func (s *PostgresStore) Insert(ctx context.Context, appraiser Appraiser) (id.RegistrationID, error) {
	createdAt := appraiser.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var registrationID int64
	err := s.db.QueryRowContext(ctx, insertAppraiserQuery,
		appraiser.Name,
		appraiser.Email,
		appraiser.Phone,
		appraiser.Unit.BankID,
		appraiser.Unit.BranchID,
		appraiser.AppraisalCount,
		appraiser.FaceEnrolled,
		createdAt,
	).Scan(&registrationID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return 0, dErrors.New(dErrors.CodeConflict, "an appraiser with this email already exists")
		}
		return 0, fmt.Errorf("insert appraiser: %w", err)
	}
	return id.RegistrationID(registrationID), nil
}

const getAppraiserQuery = `
SELECT id, name, email, phone, bank_id, branch_id, appraisal_count, face_enrolled, created_at
FROM appraisers
WHERE id = $1`

func (s *PostgresStore) GetByID(ctx context.Context, registrationID id.RegistrationID) (Appraiser, error) {
	appraiser, err := scanAppraiser(s.db.QueryRowContext(ctx, getAppraiserQuery, int64(registrationID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appraiser{}, dErrors.New(dErrors.CodeNotFound, "appraiser not found")
		}
		return Appraiser{}, fmt.Errorf("get appraiser: %w", err)
	}
	return appraiser, nil
}

const setFaceEnrolledQuery = `
UPDATE appraisers
SET face_enrolled = $2
WHERE id = $1`

func (s *PostgresStore) SetFaceEnrolled(ctx context.Context, registrationID id.RegistrationID, enrolled bool) error {
	result, err := s.db.ExecContext(ctx, setFaceEnrolledQuery, int64(registrationID), enrolled)
	if err != nil {
		return fmt.Errorf("set face enrolled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set face enrolled: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, "appraiser not found")
	}
	return nil
}

const listByUnitQuery = `
SELECT id, name, email, phone, bank_id, branch_id, appraisal_count, face_enrolled, created_at
FROM appraisers
WHERE bank_id = $1 AND branch_id = $2
ORDER BY id`

func (s *PostgresStore) ListByUnit(ctx context.Context, bankID, branchID int64) ([]Appraiser, error) {
	rows, err := s.db.QueryContext(ctx, listByUnitQuery, bankID, branchID)
	if err != nil {
		return nil, fmt.Errorf("list appraisers: %w", err)
	}
	defer rows.Close()

	var appraisers []Appraiser
	for rows.Next() {
		appraiser, err := scanAppraiser(rows)
		if err != nil {
			return nil, fmt.Errorf("list appraisers: %w", err)
		}
		appraisers = append(appraisers, appraiser)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appraisers: %w", err)
	}
	return appraisers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppraiser(row rowScanner) (Appraiser, error) {
	var (
		appraiser Appraiser
		rawID     int64
		unit      directory.OrgUnitRef
	)
	err := row.Scan(
		&rawID,
		&appraiser.Name,
		&appraiser.Email,
		&appraiser.Phone,
		&unit.BankID,
		&unit.BranchID,
		&appraiser.AppraisalCount,
		&appraiser.FaceEnrolled,
		&appraiser.CreatedAt,
	)
	if err != nil {
		return Appraiser{}, err
	}
	appraiser.ID = id.RegistrationID(rawID)
	appraiser.Unit = unit
	return appraiser, nil
}
