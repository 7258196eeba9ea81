package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecourt/internal/config"
	"github.com/sells-group/forecourt/internal/evidence"
	"github.com/sells-group/forecourt/internal/model"
	"github.com/sells-group/forecourt/internal/results"
	"github.com/sells-group/forecourt/internal/sites"
	"github.com/sells-group/forecourt/internal/store"
	"github.com/sells-group/forecourt/pkg/google"
	"github.com/sells-group/forecourt/pkg/google/mocks"
)

type fixture struct {
	srv         *httptest.Server
	corrections store.Store
	table       results.Table
	streetView  *mocks.MockClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	images := filepath.Join(dir, "images")
	require.NoError(t, os.Mkdir(images, 0o755))
	for _, n := range []string{"1001_b.jpg", "1001_a.jpg", "2002_a.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(images, n), []byte("img:"+n), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".secret"), []byte("x"), 0o644))

	table := results.NewCSVTable(filepath.Join(dir, "out.csv"))
	require.NoError(t, table.Append(ctx, model.InferenceResult{
		SiteID: "1001", HasShop: model.Bool(true), ShopBrand: model.String("Spar"), Accuracy: model.Int(90), Tokens: 812,
	}))
	require.NoError(t, table.Append(ctx, model.InferenceResult{
		SiteID: "2002", HasShop: model.Bool(false), Accuracy: model.Int(70), Tokens: 640,
	}))

	sitesCSV := filepath.Join(dir, "sites.csv")
	require.NoError(t, os.WriteFile(sitesCSV, []byte("siteid,latitude,longitude,heading,pitch\n1001,51.5,-0.12,90,0\n"), 0o644))
	catalog, err := sites.Load(ctx, sitesCSV)
	require.NoError(t, err)

	corrections, err := store.Open(ctx, config.CorrectionsConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "c.db")})
	require.NoError(t, err)
	t.Cleanup(func() { corrections.Close() }) //nolint:errcheck

	sv := mocks.NewMockClient(t)
	s := New(Deps{
		Results:     table,
		Corrections: corrections,
		Evidence:    evidence.NewLocalStore(images),
		Sites:       catalog,
		StreetView:  sv,
		Config:      config.StreetViewConfig{Key: "maps-key", FOV: 80, Width: 600, Height: 450},
	})
	srv := httptest.NewServer(s.Handler([]string{"http://localhost:3000"}))
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, corrections: corrections, table: table, streetView: sv}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestListSites_OverlaysCorrections(t *testing.T) {
	f := newFixture(t)
	_, err := f.corrections.UpsertCorrection(context.Background(), model.Correction{
		SiteID: "1001", CorrectedBrand: model.String("Co-op"),
	})
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/sites", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decode[[]SiteRow](t, resp)
	require.Len(t, rows, 2)

	assert.Equal(t, "1001", rows[0].SiteID)
	assert.Equal(t, "Co-op", *rows[0].ShopBrand)
	assert.True(t, rows[0].Corrected)
	assert.Equal(t, 812, rows[0].Tokens)

	assert.Equal(t, "2002", rows[1].SiteID)
	assert.Nil(t, rows[1].ShopBrand)
	assert.False(t, rows[1].Corrected)
}

func TestListSites_LegacySiteIDCorrected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.table.Append(ctx, model.InferenceResult{
		SiteID: "3003.0", HasShop: model.Bool(true), ShopBrand: model.String("Spar"), Tokens: 500,
	}))
	_, err := f.corrections.UpsertCorrection(ctx, model.Correction{
		SiteID: results.Canonical("3003.0"), CorrectedBrand: model.String("Londis"),
	})
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/sites", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decode[[]SiteRow](t, resp)
	require.Len(t, rows, 3)

	assert.Equal(t, "3003.0", rows[2].SiteID)
	assert.Equal(t, "Londis", *rows[2].ShopBrand)
	assert.True(t, rows[2].Corrected)
	assert.False(t, rows[0].Corrected)
}

func TestGetSite(t *testing.T) {
	f := newFixture(t)
	f.streetView.On("Metadata", mock.Anything, 51.5, -0.12).
		Return(&google.Metadata{Status: "OK", Date: "2023-06"}, nil).Once()

	resp := f.do(t, http.MethodGet, "/api/sites/1001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[SiteDetail](t, resp)

	assert.Equal(t, "1001", d.SiteID)
	require.NotNil(t, d.Result)
	assert.Equal(t, "Spar", *d.Result.ShopBrand)
	assert.Nil(t, d.Correction)
	assert.Equal(t, []string{"/images/1001_a.jpg", "/images/1001_b.jpg"}, d.Images)
	assert.Contains(t, d.EmbedURL, "location=51.5%2C-0.12")
	assert.Contains(t, d.EmbedURL, "key=maps-key")
	assert.Equal(t, 600, d.EmbedWidth)
	require.NotNil(t, d.StreetView)
	assert.Equal(t, "2023-06", d.StreetView.Date)
}

func TestGetSite_NoMetadataRow(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/sites/2002", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[SiteDetail](t, resp)
	assert.Empty(t, d.EmbedURL)
	assert.Nil(t, d.Site)
	assert.Equal(t, []string{"/images/2002_a.png"}, d.Images)
}

func TestGetSite_NotFound(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/sites/9999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPutCorrection(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/sites/1001/correction",
		`{"corrected_brand":"Co-op","corrected_by":"ana","note":"new fascia"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[model.Correction](t, resp)
	assert.Equal(t, "Co-op", *saved.CorrectedBrand)
	require.NotNil(t, saved.OriginalBrand)
	assert.Equal(t, "Spar", *saved.OriginalBrand)

	c, err := f.corrections.GetCorrection(context.Background(), "1001")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "ana", c.CorrectedBy)
}

func TestPutCorrection_DoesNotTouchResults(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPut, "/api/sites/2002/correction", `{"has_shop":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f.streetView.AssertNotCalled(t, "Metadata", mock.Anything, mock.Anything, mock.Anything)
	resp = f.do(t, http.MethodGet, "/api/sites/2002", "")
	d := decode[SiteDetail](t, resp)
	require.NotNil(t, d.Result)
	assert.True(t, *d.Result.HasShop)
	require.NotNil(t, d.Correction)
}

func TestPutCorrection_BadRequest(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/sites/1001/correction", `{`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/sites/1001/correction", `{"note":"x"}`).StatusCode)
}

func TestDeleteCorrection(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/sites/1001/correction", "").StatusCode)

	_, err := f.corrections.UpsertCorrection(context.Background(), model.Correction{SiteID: "1001", HasShop: model.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/sites/1001/correction", "").StatusCode)
}

func TestImage(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/images/1001_a.jpg", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "img:1001_a.jpg", buf.String())
}

func TestImage_Rejects(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/images/notes.txt", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/images/missing.jpg", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/images/..%5C.secret", "").StatusCode)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/sites", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
