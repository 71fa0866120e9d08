package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"shortlink/internal/types"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Database is the durable mapping store. Short-code uniqueness is enforced
// by the UNIQUE constraint, never by a prior existence read, and click
// counts are only changed through the database's own atomic increment.
type Database struct {
	db *sqlx.DB
}

func ConnectPostgres(url string) (*Database, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, err
	}

	pg := &Database{db: db}

	if err := pg.RunMigrations(); err != nil {
		return nil, err
	}

	return pg, nil
}

func (db *Database) RunMigrations() error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db.db.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("Database migrations applied successfully")
	return nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

// InsertMapping persists a new mapping and fills in its assigned id. A
// short-code collision surfaces as types.ErrDuplicateCode so the caller can
// regenerate and retry.
func (db *Database) InsertMapping(ctx context.Context, m *types.Mapping) error {
	const query = `
		INSERT INTO mappings (short_code, target_url, owner_ref, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := db.db.QueryRowContext(ctx, query,
		m.ShortCode, m.TargetURL, m.OwnerRef, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ErrDuplicateCode
		}
		return fmt.Errorf("insert mapping: %w", err)
	}
	return nil
}

// MappingByCode is the redirect hot path.
func (db *Database) MappingByCode(ctx context.Context, shortCode string) (*types.Mapping, error) {
	const query = `
		SELECT id, short_code, target_url, click_count, owner_ref, created_at
		FROM mappings
		WHERE short_code = $1`

	var m types.Mapping
	if err := db.db.GetContext(ctx, &m, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("lookup mapping: %w", err)
	}
	return &m, nil
}

// IncrementClickCount adds one to the mapping's counter. The increment runs
// inside the database, so concurrent callers never lose updates.
func (db *Database) IncrementClickCount(ctx context.Context, id int64) error {
	const query = `
		UPDATE mappings
		SET click_count = click_count + 1
		WHERE id = $1`

	result, err := db.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment click count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return types.ErrNotFound
	}
	return nil
}

// MappingsByOwner lists an owner's mappings, newest first.
func (db *Database) MappingsByOwner(ctx context.Context, ownerRef int64) ([]types.Mapping, error) {
	const query = `
		SELECT id, short_code, target_url, click_count, owner_ref, created_at
		FROM mappings
		WHERE owner_ref = $1
		ORDER BY created_at DESC`

	var rows []types.Mapping
	if err := db.db.SelectContext(ctx, &rows, query, ownerRef); err != nil {
		return nil, fmt.Errorf("list mappings by owner: %w", err)
	}
	return rows, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
