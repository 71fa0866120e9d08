package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net"
	"time"

	"shortlink/internal/types"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang-migrate/migrate/v4"
	clickmigrations "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/oschwald/geoip2-golang"
)

//go:embed migrations/clickhouse/*.sql
var migrationsClickHouseFS embed.FS

// EventStore is the append-only click-event log backed by ClickHouse.
// Events are written in batches by the recorder and read back by the
// analytics aggregator; rows are never updated.
type EventStore struct {
	db  *sql.DB
	geo *geoip2.Reader
}

// ConnectClickHouse opens the event log. geoPath may be empty, in which
// case events are stored without country/city enrichment.
func ConnectClickHouse(addr, user, pass, dbName, geoPath string) (*EventStore, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
			Username: user,
			Password: pass,
		},
		DialTimeout: time.Second * 30,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	var geo *geoip2.Reader
	if geoPath != "" {
		var err error
		geo, err = geoip2.Open(geoPath)
		if err != nil {
			return nil, err
		}
	}

	s := &EventStore{db: conn, geo: geo}

	if err := s.runMigrations(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *EventStore) runMigrations() error {
	d, err := iofs.New(migrationsClickHouseFS, "migrations/clickhouse")
	if err != nil {
		return err
	}

	driver, err := clickmigrations.WithInstance(s.db, &clickmigrations.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"clickhouse", driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	slog.Info("ClickHouse migrations applied successfully")
	return nil
}

func (s *EventStore) Close() error {
	if s.geo != nil {
		if err := s.geo.Close(); err != nil {
			return err
		}
	}
	return s.db.Close()
}

// InsertClicks persists a batch of clicks as one transaction. Each click
// gets a fresh event id; the source IP is resolved to country/city and
// discarded.
func (s *EventStore) InsertClicks(ctx context.Context, clicks []types.Click) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO clicks (id, mapping_id, short_code, country, city, occurred_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range clicks {
		country, city := s.locate(c.IP)
		_, err = stmt.ExecContext(ctx, uuid.New(), c.MappingID, c.ShortCode, country, city, c.OccurredAt)
		if err != nil {
			return fmt.Errorf("insert click for %q: %w", c.ShortCode, err)
		}
	}
	return tx.Commit()
}

// ClicksByMapping returns events for the given mappings within [from, to),
// ordered by occurrence time. Range validation belongs to the aggregator.
func (s *EventStore) ClicksByMapping(ctx context.Context, mappingIDs []int64, from, to time.Time) ([]types.ClickEvent, error) {
	if len(mappingIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, mapping_id, short_code, country, city, occurred_at
		 FROM clicks
		 WHERE mapping_id IN (?) AND occurred_at >= ? AND occurred_at < ?
		 ORDER BY occurred_at`,
		mappingIDs, from, to)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}
	defer rows.Close()

	var events []types.ClickEvent
	for rows.Next() {
		var ev types.ClickEvent
		if err := rows.Scan(&ev.ID, &ev.MappingID, &ev.ShortCode, &ev.Country, &ev.City, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *EventStore) locate(rawIP string) (country, city string) {
	country, city = "Unknown", "Unknown"
	if s.geo == nil {
		return
	}
	ip := net.ParseIP(rawIP)
	if ip == nil {
		return
	}
	record, err := s.geo.City(ip)
	if err != nil {
		return
	}
	if name, ok := record.Country.Names["en"]; ok {
		country = name
	}
	if name, ok := record.City.Names["en"]; ok {
		city = name
	}
	return
}
