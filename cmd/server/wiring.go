package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"imrich/internal/certificate/service"
	"imrich/internal/certificate/store"
	"imrich/internal/platform/config"
	"imrich/internal/storage"
	audit "imrich/pkg/platform/audit"
	auditmemory "imrich/pkg/platform/audit/store/memory"
	auditpostgres "imrich/pkg/platform/audit/store/postgres"
)

// stores holds the selected backend and the resources it owns.
type stores struct {
	certificates service.Store
	audit        audit.Store
	db           *sql.DB
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openStores selects the certificate store and runs migrations for SQL backends.
func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := storage.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, db, storage.DialectPostgres, log); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &stores{
			certificates: store.NewPostgres(db),
			audit:        auditpostgres.New(db),
			db:           db,
		}, nil
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, db, storage.DialectSQLite, log); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &stores{
			certificates: store.NewSQLite(db),
			audit:        auditmemory.NewInMemoryStore(),
			db:           db,
		}, nil
	case config.BackendMemory:
		log.Warn("using in-memory certificate store; data is lost on restart")
		return &stores{
			certificates: store.NewInMemoryStore(),
			audit:        auditmemory.NewInMemoryStore(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func migrate(ctx context.Context, db *sql.DB, dialect storage.Dialect, log *slog.Logger) error {
	applied, err := storage.Migrate(ctx, db, dialect)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	for _, name := range applied {
		log.Info("applied migration", "dialect", dialect, "migration", name)
	}
	return nil
}
