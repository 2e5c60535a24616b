package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/notabene00/yandex-weather/internal/models"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// Store persists config entries and the reading history.
type Store interface {
	SaveEntry(ctx context.Context, entry models.Entry) error
	UpdateEntry(ctx context.Context, entry models.Entry) error
	GetEntry(ctx context.Context, id string) (models.Entry, error)
	FindByUniqueID(ctx context.Context, uniqueID string) (models.Entry, error)
	ListEntries(ctx context.Context) ([]models.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	RecordReading(ctx context.Context, reading models.Reading) (int64, error)
	ListReadings(ctx context.Context, entryID string, limit int) ([]models.Reading, error)
	Close() error
}

var schemas = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS entries (
			entry_id TEXT PRIMARY KEY,
			unique_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			data TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			observed_at TEXT NOT NULL,
			temperature REAL,
			feels_like REAL,
			humidity INTEGER,
			pressure_mm INTEGER,
			wind_speed REAL,
			weather_condition TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS readings_entry_idx ON readings(entry_id, id)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS entries (
			entry_id TEXT PRIMARY KEY,
			unique_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			data TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS readings (
			id BIGSERIAL PRIMARY KEY,
			entry_id TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			observed_at TEXT NOT NULL,
			temperature DOUBLE PRECISION,
			feels_like DOUBLE PRECISION,
			humidity INTEGER,
			pressure_mm INTEGER,
			wind_speed DOUBLE PRECISION,
			weather_condition TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS readings_entry_idx ON readings(entry_id, id)`,
	},
}

type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the tables. driver is "sqlite"
// (dsn is a file path) or "postgres" (dsn is a connection string).
func Open(driver, dsn string) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported storage driver: %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) SaveEntry(ctx context.Context, entry models.Entry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to encode entry data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO entries(entry_id, unique_id, title, data, version, created_at, updated_at) VALUES(?,?,?,?,?,?,?)`),
		entry.ID, entry.UniqueID, entry.Title, string(data), entry.Version,
		formatTime(entry.CreatedAt), formatTime(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert entry %s: %w", entry.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateEntry(ctx context.Context, entry models.Entry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to encode entry data: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE entries SET unique_id = ?, title = ?, data = ?, version = ?, updated_at = ? WHERE entry_id = ?`),
		entry.UniqueID, entry.Title, string(data), entry.Version, formatTime(entry.UpdatedAt), entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", entry.ID, err)
	}
	return expectRow(res, entry.ID)
}

func (s *SQLStore) GetEntry(ctx context.Context, id string) (models.Entry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT entry_id, unique_id, title, data, version, created_at, updated_at FROM entries WHERE entry_id = ?`), id)
	return scanEntry(row)
}

func (s *SQLStore) FindByUniqueID(ctx context.Context, uniqueID string) (models.Entry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT entry_id, unique_id, title, data, version, created_at, updated_at FROM entries WHERE unique_id = ?`), uniqueID)
	return scanEntry(row)
}

func (s *SQLStore) ListEntries(ctx context.Context) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry_id, unique_id, title, data, version, created_at, updated_at FROM entries ORDER BY created_at, entry_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	out := make([]models.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteEntry removes the entry and its reading history.
func (s *SQLStore) DeleteEntry(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM entries WHERE entry_id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	if err := expectRow(res, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM readings WHERE entry_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete readings of %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *SQLStore) RecordReading(ctx context.Context, r models.Reading) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO readings(entry_id, fetched_at, observed_at, temperature, feels_like, humidity, pressure_mm, wind_speed, weather_condition) VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`),
		r.EntryID, formatTime(r.FetchedAt), formatTime(r.ObservedAt), r.Temperature, r.FeelsLike,
		r.Humidity, r.PressureMM, r.WindSpeed, r.Condition).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record reading: %w", err)
	}
	return id, nil
}

// ListReadings returns up to limit readings of an entry, newest first.
func (s *SQLStore) ListReadings(ctx context.Context, entryID string, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, entry_id, fetched_at, observed_at, temperature, feels_like, humidity, pressure_mm, wind_speed, weather_condition FROM readings WHERE entry_id = ? ORDER BY id DESC LIMIT ?`), entryID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Reading, 0)
	for rows.Next() {
		var r models.Reading
		var fetchedAt, observedAt string
		if err := rows.Scan(&r.ID, &r.EntryID, &fetchedAt, &observedAt, &r.Temperature, &r.FeelsLike,
			&r.Humidity, &r.PressureMM, &r.WindSpeed, &r.Condition); err != nil {
			return nil, err
		}
		if r.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, err
		}
		if r.ObservedAt, err = parseTime(observedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (models.Entry, error) {
	var entry models.Entry
	var data, createdAt, updatedAt string
	err := row.Scan(&entry.ID, &entry.UniqueID, &entry.Title, &data, &entry.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, ErrNotFound
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("failed to read entry: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &entry.Data); err != nil {
		return models.Entry{}, fmt.Errorf("failed to decode entry data: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Entry{}, err
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}
