package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/forecourt/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS corrections (
	id              TEXT PRIMARY KEY,
	site_id         TEXT NOT NULL UNIQUE,
	original_brand  TEXT,
	corrected_brand TEXT,
	has_shop        INTEGER,
	note            TEXT NOT NULL DEFAULT '',
	corrected_by    TEXT NOT NULL DEFAULT '',
	corrected_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_corrections_corrected_at ON corrections(corrected_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = `id, site_id, original_brand, corrected_brand, has_shop, note, corrected_by, corrected_at`

func (s *SQLiteStore) UpsertCorrection(ctx context.Context, c model.Correction) (*model.Correction, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CorrectedAt.IsZero() {
		c.CorrectedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO corrections (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			original_brand  = COALESCE(corrections.original_brand, excluded.original_brand),
			corrected_brand = excluded.corrected_brand,
			has_shop        = excluded.has_shop,
			note            = excluded.note,
			corrected_by    = excluded.corrected_by,
			corrected_at    = excluded.corrected_at`,
		c.ID, c.SiteID, nullString(c.OriginalBrand), nullString(c.CorrectedBrand), nullBool(c.HasShop),
		c.Note, c.CorrectedBy, c.CorrectedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert correction %s", c.SiteID)
	}

	return s.GetCorrection(ctx, c.SiteID)
}

func (s *SQLiteStore) GetCorrection(ctx context.Context, siteID string) (*model.Correction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM corrections WHERE site_id = ?`, siteID)
	c, err := scanCorrection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get correction %s", siteID)
	}
	return c, nil
}

func (s *SQLiteStore) ListCorrections(ctx context.Context) ([]model.Correction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM corrections ORDER BY site_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list corrections")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan correction")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate corrections")
}

func (s *SQLiteStore) DeleteCorrection(ctx context.Context, siteID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM corrections WHERE site_id = ?`, siteID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete correction %s", siteID)
	}
	return checkRowsAffected(res, "correction", siteID)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCorrection(row scannable) (*model.Correction, error) {
	var (
		c                   model.Correction
		original, corrected sql.NullString
		hasShop             sql.NullBool
		correctedAt         string
	)
	if err := row.Scan(&c.ID, &c.SiteID, &original, &corrected, &hasShop, &c.Note, &c.CorrectedBy, &correctedAt); err != nil {
		return nil, err
	}
	if original.Valid {
		c.OriginalBrand = model.String(original.String)
	}
	if corrected.Valid {
		c.CorrectedBrand = model.String(corrected.String)
	}
	if hasShop.Valid {
		c.HasShop = model.Bool(hasShop.Bool)
	}
	t, err := time.Parse(time.RFC3339Nano, correctedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse corrected_at %q", correctedAt)
	}
	c.CorrectedAt = t
	return &c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
