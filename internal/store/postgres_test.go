package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecourt/internal/model"
)

var pgCols = []string{"id", "site_id", "original_brand", "corrected_brand", "has_shop", "note", "corrected_by", "corrected_at"}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS corrections").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Upsert(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO corrections").
		WithArgs("id-1", "1001", pgtype.Text{String: "Spar", Valid: true}, pgtype.Text{String: "Co-op", Valid: true},
			pgtype.Bool{}, "", "ana", at).
		WillReturnRows(pgxmock.NewRows(pgCols).AddRow(
			"id-1", "1001", pgtype.Text{String: "Spar", Valid: true}, pgtype.Text{String: "Co-op", Valid: true},
			pgtype.Bool{}, "", "ana", at,
		))

	got, err := s.UpsertCorrection(context.Background(), model.Correction{
		ID:             "id-1",
		SiteID:         "1001",
		OriginalBrand:  model.String("Spar"),
		CorrectedBrand: model.String("Co-op"),
		CorrectedBy:    "ana",
		CorrectedAt:    at,
	})
	require.NoError(t, err)
	assert.Equal(t, "Co-op", *got.CorrectedBrand)
	assert.Nil(t, got.HasShop)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertRejectsEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	_, err := s.UpsertCorrection(context.Background(), model.Correction{SiteID: "1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .+ FROM corrections WHERE site_id").
		WithArgs("9").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCorrection(context.Background(), "9")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM corrections ORDER BY site_id").
		WillReturnRows(pgxmock.NewRows(pgCols).
			AddRow("a", "1", pgtype.Text{}, pgtype.Text{String: "Shell", Valid: true}, pgtype.Bool{Bool: true, Valid: true}, "", "", at).
			AddRow("b", "2", pgtype.Text{}, pgtype.Text{}, pgtype.Bool{Bool: false, Valid: true}, "closed", "", at))

	list, err := s.ListCorrections(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Shell", *list[0].CorrectedBrand)
	assert.True(t, *list[0].HasShop)
	assert.Nil(t, list[1].CorrectedBrand)
	assert.False(t, *list[1].HasShop)
	assert.Equal(t, "closed", list[1].Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM corrections").WithArgs("1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM corrections").WithArgs("2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteCorrection(context.Background(), "1"))
	err := s.DeleteCorrection(context.Background(), "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgres_BadConnString(t *testing.T) {
	_, err := NewPostgres(context.Background(), "://bad")
	require.Error(t, err)
}
