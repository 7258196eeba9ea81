package results

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecourt/internal/config"
	"github.com/sells-group/forecourt/internal/model"
)

// Table is an append-only row store keyed logically by SiteID.
type Table interface {
	// Path returns the backing file location.
	Path() string
	// SiteIDs returns the SiteID column. A missing table yields no IDs.
	SiteIDs(ctx context.Context) ([]string, error)
	// List returns every row in file order.
	List(ctx context.Context) ([]model.InferenceResult, error)
	// Append adds one row, creating the table with a header on first write.
	Append(ctx context.Context, r model.InferenceResult) error
}

// New returns the table configured by cfg.
func New(cfg config.ResultsConfig) (Table, error) {
	switch cfg.Driver {
	case "", "csv":
		return NewCSVTable(cfg.Path), nil
	case "xlsx":
		return NewXLSXTable(cfg.Path, cfg.Sheet), nil
	default:
		return nil, eris.Errorf("results: unknown driver %q", cfg.Driver)
	}
}

func siteIDs(ctx context.Context, t Table) ([]string, error) {
	rows, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.SiteID != "" {
			ids = append(ids, r.SiteID)
		}
	}
	return ids, nil
}

func exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "results: stat %s", path)
	}
	return info.Size() > 0, nil
}
