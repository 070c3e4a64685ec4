package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sugarcypher/sweetguard/internal/models"
)

//go:embed schema.sql
var schemaFS embed.FS

// Fixed-width UTC timestamps sort lexically and round-trip exactly
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB interface defines the methods our database should implement
type DB interface {
	SaveCacheEntry(ctx context.Context, entry *models.CacheEntry) error
	GetCacheEntry(ctx context.Context, barcode string) (*models.CacheEntry, error)
	DeleteCacheEntry(ctx context.Context, barcode string) error
	ClearCacheEntries(ctx context.Context) error
	CacheBarcodes(ctx context.Context) ([]string, error)

	SaveScan(ctx context.Context, scan *models.ScanRecord) error
	UpdateScanStatus(ctx context.Context, id, status, source, errMsg string) error
	GetRecentScans(ctx context.Context, limit int) ([]*models.ScanRecord, error)

	Close() error
}

// SQLiteDB implements the DB interface
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	// busy_timeout is per connection, so it goes in the DSN for every pooled conn
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}
	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// SaveCacheEntry inserts or replaces the entry for its barcode
func (s *SQLiteDB) SaveCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	query := `
		INSERT INTO cache_entries (barcode, source, trust_score, result, captured_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(barcode) DO UPDATE SET
			source = excluded.source,
			trust_score = excluded.trust_score,
			result = excluded.result,
			captured_at = excluded.captured_at
	`

	result, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query,
		entry.Barcode, entry.Result.Source, entry.Result.TrustScore,
		string(result), entry.CapturedAt.UTC().Format(timeLayout),
	)
	return err
}

// GetCacheEntry returns the stored entry, or nil when the barcode is unknown
func (s *SQLiteDB) GetCacheEntry(ctx context.Context, barcode string) (*models.CacheEntry, error) {
	query := `SELECT barcode, result, captured_at FROM cache_entries WHERE barcode = ?`

	var (
		entry      models.CacheEntry
		result     string
		capturedAt string
	)
	err := s.db.QueryRowContext(ctx, query, barcode).Scan(&entry.Barcode, &result, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(result), &entry.Result); err != nil {
		return nil, fmt.Errorf("error decoding cached result for %s: %w", barcode, err)
	}
	if entry.CapturedAt, err = time.Parse(timeLayout, capturedAt); err != nil {
		return nil, fmt.Errorf("error parsing captured_at for %s: %w", barcode, err)
	}
	return &entry, nil
}

func (s *SQLiteDB) DeleteCacheEntry(ctx context.Context, barcode string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE barcode = ?`, barcode)
	return err
}

func (s *SQLiteDB) ClearCacheEntries(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	return err
}

// CacheBarcodes lists cached barcodes in ascending order
func (s *SQLiteDB) CacheBarcodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT barcode FROM cache_entries ORDER BY barcode`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var barcodes []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		barcodes = append(barcodes, b)
	}
	return barcodes, rows.Err()
}

// SaveScan saves a scan to the database
func (s *SQLiteDB) SaveScan(ctx context.Context, scan *models.ScanRecord) error {
	query := `
		INSERT OR REPLACE INTO scans (
			id, barcode, status, source, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = now
	}
	scan.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		scan.ID, scan.Barcode, scan.Status, scan.Source, scan.Error,
		scan.CreatedAt.UTC().Format(timeLayout), scan.UpdatedAt.Format(timeLayout),
	)
	return err
}

// UpdateScanStatus updates the status of a scan
func (s *SQLiteDB) UpdateScanStatus(ctx context.Context, id, status, source, errMsg string) error {
	query := `
		UPDATE scans
		SET status = ?, source = ?, error = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := s.db.ExecContext(ctx, query, status, source, errMsg, time.Now().UTC().Format(timeLayout), id)
	return err
}

// GetRecentScans retrieves the most recent scans, newest first
func (s *SQLiteDB) GetRecentScans(ctx context.Context, limit int) ([]*models.ScanRecord, error) {
	query := `
		SELECT id, barcode, status, source, error, created_at, updated_at
		FROM scans
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.ScanRecord
	for rows.Next() {
		var scan models.ScanRecord
		var createdAt, updatedAt string

		err := rows.Scan(
			&scan.ID, &scan.Barcode, &scan.Status, &scan.Source, &scan.Error,
			&createdAt, &updatedAt,
		)
		if err != nil {
			return nil, err
		}

		scan.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		scan.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)

		results = append(results, &scan)
	}

	return results, rows.Err()
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
