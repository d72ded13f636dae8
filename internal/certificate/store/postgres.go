package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"imrich/internal/certificate/models"
	id "imrich/pkg/domain"
)

const pgUniqueViolation = "23505"

// PostgresStore persists certificates in Postgres. The unique index on serial
// is the authoritative collision guard.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const certificateColumns = `id, serial, owner_account_id, owner_email, customization,
	artifact_verified_ref, artifact_wallpaper_ref, payment_status, created_at`

func (s *PostgresStore) Insert(ctx context.Context, cert *models.Certificate) error {
	customization, err := json.Marshal(cert.Customization)
	if err != nil {
		return fmt.Errorf("marshal customization: %w", err)
	}
	query := `
		INSERT INTO certificates (serial, owner_account_id, owner_email, customization,
			artifact_verified_ref, artifact_wallpaper_ref, payment_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		cert.Serial,
		cert.Owner.AccountID,
		cert.Owner.Email,
		string(customization),
		cert.ArtifactVerifiedRef,
		cert.ArtifactWallpaperRef,
		cert.PaymentStatus,
		cert.CreatedAt.UTC(),
	).Scan(&cert.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrDuplicateSerial
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBySerial(ctx context.Context, serial models.Serial) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE serial = $1`
	cert, err := scanPostgres(s.db.QueryRowContext(ctx, query, serial))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find certificate by serial: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.AccountID) ([]*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + `
		FROM certificates
		WHERE owner_account_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list certificates by owner: %w", err)
	}
	defer rows.Close()

	out := []*models.Certificate{}
	for rows.Next() {
		cert, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return out, nil
}

// UpdatePaymentStatus moves a pending certificate to a terminal status in one
// conditional UPDATE. A miss is disambiguated into NotFound or InvalidTransition.
func (s *PostgresStore) UpdatePaymentStatus(ctx context.Context, serial models.Serial, status models.PaymentStatus) (*models.Certificate, error) {
	if status.IsTerminal() {
		query := `
			UPDATE certificates SET payment_status = $2
			WHERE serial = $1 AND payment_status = 'pending'
			RETURNING ` + certificateColumns
		cert, err := scanPostgres(s.db.QueryRowContext(ctx, query, serial, status))
		if err == nil {
			return cert, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update payment status: %w", err)
		}
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificates WHERE serial = $1)`, serial,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check certificate exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrInvalidTransition
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM certificates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgres(row rowScanner) (*models.Certificate, error) {
	var (
		cert          models.Certificate
		customization []byte
	)
	err := row.Scan(
		&cert.ID,
		&cert.Serial,
		&cert.Owner.AccountID,
		&cert.Owner.Email,
		&customization,
		&cert.ArtifactVerifiedRef,
		&cert.ArtifactWallpaperRef,
		&cert.PaymentStatus,
		&cert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customization, &cert.Customization); err != nil {
		return nil, fmt.Errorf("unmarshal customization: %w", err)
	}
	cert.CreatedAt = cert.CreatedAt.UTC()
	return &cert, nil
}
