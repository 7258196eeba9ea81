package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/forecourt/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS corrections (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	site_id         TEXT NOT NULL UNIQUE,
	original_brand  TEXT,
	corrected_brand TEXT,
	has_shop        BOOLEAN,
	note            TEXT NOT NULL DEFAULT '',
	corrected_by    TEXT NOT NULL DEFAULT '',
	corrected_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_corrections_corrected_at ON corrections(corrected_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgColumns = `id, site_id, original_brand, corrected_brand, has_shop, note, corrected_by, corrected_at`

func (s *PostgresStore) UpsertCorrection(ctx context.Context, c model.Correction) (*model.Correction, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CorrectedAt.IsZero() {
		c.CorrectedAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO corrections (`+pgColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (site_id) DO UPDATE SET
			original_brand  = COALESCE(corrections.original_brand, EXCLUDED.original_brand),
			corrected_brand = EXCLUDED.corrected_brand,
			has_shop        = EXCLUDED.has_shop,
			note            = EXCLUDED.note,
			corrected_by    = EXCLUDED.corrected_by,
			corrected_at    = EXCLUDED.corrected_at
		RETURNING `+pgColumns,
		c.ID, c.SiteID, pgText(c.OriginalBrand), pgText(c.CorrectedBrand), pgBool(c.HasShop),
		c.Note, c.CorrectedBy, c.CorrectedAt,
	)
	out, err := scanPgCorrection(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert correction %s", c.SiteID)
	}
	return out, nil
}

func (s *PostgresStore) GetCorrection(ctx context.Context, siteID string) (*model.Correction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM corrections WHERE site_id = $1`, siteID)
	c, err := scanPgCorrection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get correction %s", siteID)
	}
	return c, nil
}

func (s *PostgresStore) ListCorrections(ctx context.Context) ([]model.Correction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+` FROM corrections ORDER BY site_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		c, err := scanPgCorrection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan correction")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate corrections")
}

func (s *PostgresStore) DeleteCorrection(ctx context.Context, siteID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM corrections WHERE site_id = $1`, siteID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete correction %s", siteID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: correction not found: %s", siteID)
	}
	return nil
}

func scanPgCorrection(row pgx.Row) (*model.Correction, error) {
	var (
		c                   model.Correction
		original, corrected pgtype.Text
		hasShop             pgtype.Bool
	)
	if err := row.Scan(&c.ID, &c.SiteID, &original, &corrected, &hasShop, &c.Note, &c.CorrectedBy, &c.CorrectedAt); err != nil {
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
	return &c, nil
}

func pgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func pgBool(b *bool) pgtype.Bool {
	if b == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *b, Valid: true}
}
