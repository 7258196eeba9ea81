// Package store persists human brand corrections keyed by SiteID, separate
// from the append-only results table.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecourt/internal/config"
	"github.com/sells-group/forecourt/internal/model"
	"github.com/sells-group/forecourt/internal/results"
)

// Store defines the persistence interface for brand corrections.
type Store interface {
	// UpsertCorrection inserts or replaces the correction for c.SiteID and
	// returns the stored row.
	UpsertCorrection(ctx context.Context, c model.Correction) (*model.Correction, error)
	// GetCorrection returns nil, nil when the site has no correction.
	GetCorrection(ctx context.Context, siteID string) (*model.Correction, error)
	ListCorrections(ctx context.Context) ([]model.Correction, error)
	DeleteCorrection(ctx context.Context, siteID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured corrections store and migrates it.
func Open(ctx context.Context, cfg config.CorrectionsConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func validate(c model.Correction) error {
	if strings.TrimSpace(c.SiteID) == "" {
		return eris.New("store: correction without site id")
	}
	if c.CorrectedBrand == nil && c.HasShop == nil {
		return eris.Errorf("store: correction for %s changes nothing", c.SiteID)
	}
	return nil
}

// Overlay applies corrections to result rows in place, matching on the
// canonical SiteID so legacy spellings like "1042.0" still pick them up.
func Overlay(rows []model.InferenceResult, corrections []model.Correction) {
	bySite := make(map[string]model.Correction, len(corrections))
	for _, c := range corrections {
		bySite[results.Canonical(c.SiteID)] = c
	}
	for i := range rows {
		c, ok := bySite[results.Canonical(rows[i].SiteID)]
		if !ok {
			continue
		}
		if c.CorrectedBrand != nil {
			rows[i].ShopBrand = c.CorrectedBrand
		}
		if c.HasShop != nil {
			rows[i].HasShop = c.HasShop
		}
	}
}
