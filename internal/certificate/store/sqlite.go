package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"imrich/internal/certificate/models"
	id "imrich/pkg/domain"
)

// SQLiteStore persists certificates in a single SQLite file for single-node
// deployments. created_at is stored as Unix microseconds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Insert(ctx context.Context, cert *models.Certificate) error {
	customization, err := json.Marshal(cert.Customization)
	if err != nil {
		return fmt.Errorf("marshal customization: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO certificates (serial, owner_account_id, owner_email, customization,
			artifact_verified_ref, artifact_wallpaper_ref, payment_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(cert.Serial),
		string(cert.Owner.AccountID),
		string(cert.Owner.Email),
		string(customization),
		cert.ArtifactVerifiedRef,
		cert.ArtifactWallpaperRef,
		string(cert.PaymentStatus),
		cert.CreatedAt.UTC().UnixMicro(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateSerial
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read certificate id: %w", err)
	}
	cert.ID = newID
	return nil
}

func (s *SQLiteStore) GetBySerial(ctx context.Context, serial models.Serial) (*models.Certificate, error) {
	cert, err := scanSQLite(s.db.QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE serial = ?`, string(serial)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find certificate by serial: %w", err)
	}
	return cert, nil
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, owner id.AccountID) ([]*models.Certificate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+certificateColumns+`
		FROM certificates
		WHERE owner_account_id = ?
		ORDER BY created_at DESC, id DESC`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list certificates by owner: %w", err)
	}
	defer rows.Close()

	out := []*models.Certificate{}
	for rows.Next() {
		cert, err := scanSQLite(rows)
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

func (s *SQLiteStore) UpdatePaymentStatus(ctx context.Context, serial models.Serial, status models.PaymentStatus) (*models.Certificate, error) {
	if status.IsTerminal() {
		res, err := s.db.ExecContext(ctx,
			`UPDATE certificates SET payment_status = ? WHERE serial = ? AND payment_status = 'pending'`,
			string(status), string(serial))
		if err != nil {
			return nil, fmt.Errorf("update payment status: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return s.GetBySerial(ctx, serial)
		}
	}

	if _, err := s.GetBySerial(ctx, serial); err != nil {
		return nil, err
	}
	return nil, ErrInvalidTransition
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM certificates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanSQLite(row rowScanner) (*models.Certificate, error) {
	var (
		cert                           models.Certificate
		serial, account, email, status string
		customization                  string
		createdAt                      int64
	)
	err := row.Scan(
		&cert.ID,
		&serial,
		&account,
		&email,
		&customization,
		&cert.ArtifactVerifiedRef,
		&cert.ArtifactWallpaperRef,
		&status,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(customization), &cert.Customization); err != nil {
		return nil, fmt.Errorf("unmarshal customization: %w", err)
	}
	cert.Serial = models.Serial(serial)
	cert.Owner = models.Owner{AccountID: id.AccountID(account), Email: id.Email(email)}
	cert.PaymentStatus = models.PaymentStatus(status)
	cert.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &cert, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "certificates.serial")
}
