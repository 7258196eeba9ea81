package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecourt/internal/config"
	"github.com/sells-group/forecourt/internal/model"
)

func TestValidate(t *testing.T) {
	assert.Error(t, validate(model.Correction{}))
	assert.Error(t, validate(model.Correction{SiteID: "  "}))
	assert.Error(t, validate(model.Correction{SiteID: "1"}))
	assert.NoError(t, validate(model.Correction{SiteID: "1", CorrectedBrand: model.String("Shell")}))
	assert.NoError(t, validate(model.Correction{SiteID: "1", HasShop: model.Bool(false)}))
}

func TestOverlay(t *testing.T) {
	rows := []model.InferenceResult{
		{SiteID: "1", HasShop: model.Bool(true), ShopBrand: model.String("Spar")},
		{SiteID: "2", HasShop: model.Bool(true), ShopBrand: model.String("Londis")},
		{SiteID: "3", HasShop: model.Bool(false)},
	}
	Overlay(rows, []model.Correction{
		{SiteID: "1", CorrectedBrand: model.String("Co-op")},
		{SiteID: "3", HasShop: model.Bool(true), CorrectedBrand: model.String("Tesco Express")},
		{SiteID: "9", CorrectedBrand: model.String("ignored")},
	})

	assert.Equal(t, "Co-op", *rows[0].ShopBrand)
	assert.True(t, *rows[0].HasShop)
	assert.Equal(t, "Londis", *rows[1].ShopBrand)
	assert.True(t, *rows[2].HasShop)
	assert.Equal(t, "Tesco Express", *rows[2].ShopBrand)
}

func TestOverlay_LegacySiteIDSpelling(t *testing.T) {
	rows := []model.InferenceResult{
		{SiteID: "1042.0", HasShop: model.Bool(true), ShopBrand: model.String("Spar")},
		{SiteID: " 77 ", ShopBrand: model.String("Mace")},
	}
	Overlay(rows, []model.Correction{
		{SiteID: "1042", CorrectedBrand: model.String("Londis")},
		{SiteID: "77.0", CorrectedBrand: model.String("Costcutter")},
	})

	assert.Equal(t, "Londis", *rows[0].ShopBrand)
	assert.Equal(t, "Costcutter", *rows[1].ShopBrand)
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), config.CorrectionsConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "c.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	list, err := s.ListCorrections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.CorrectionsConfig{Driver: "mysql", DatabaseURL: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}
