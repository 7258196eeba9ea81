// Package dashboard serves the review API: classified sites with their
// corrections, the evidence images and street-view context for each site.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/forecourt/internal/config"
	"github.com/sells-group/forecourt/internal/evidence"
	"github.com/sells-group/forecourt/internal/model"
	"github.com/sells-group/forecourt/internal/results"
	"github.com/sells-group/forecourt/internal/sites"
	"github.com/sells-group/forecourt/internal/store"
	"github.com/sells-group/forecourt/pkg/google"
)

// Deps are the collaborators of the dashboard. StreetView may be nil.
type Deps struct {
	Results     results.Table
	Corrections store.Store
	Evidence    evidence.Store
	Sites       *sites.Catalog
	StreetView  google.Client
	Config      config.StreetViewConfig
}

// Server holds the dashboard handlers.
type Server struct {
	deps Deps
}

// New creates a dashboard server.
func New(deps Deps) *Server {
	if deps.Sites == nil {
		deps.Sites = &sites.Catalog{}
	}
	return &Server{deps: deps}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/images/{filename}", s.handleImage)
	r.Route("/api/sites", func(r chi.Router) {
		r.Get("/", s.handleListSites)
		r.Get("/{id}", s.handleGetSite)
		r.Put("/{id}/correction", s.handlePutCorrection)
		r.Delete("/{id}/correction", s.handleDeleteCorrection)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// SiteRow is one line of the results grid.
type SiteRow struct {
	model.InferenceResult
	Corrected bool `json:"corrected"`
}

// SiteDetail is everything the reviewer needs for one site.
type SiteDetail struct {
	SiteID      string                 `json:"site_id"`
	Result      *model.InferenceResult `json:"result"`
	Correction  *model.Correction      `json:"correction"`
	Images      []string               `json:"images"`
	Site        *model.Site            `json:"site,omitempty"`
	EmbedURL    string                 `json:"embed_url,omitempty"`
	EmbedWidth  int                    `json:"embed_width,omitempty"`
	EmbedHeight int                    `json:"embed_height,omitempty"`
	StreetView  *google.Metadata       `json:"street_view,omitempty"`
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rows, err := s.deps.Results.List(ctx)
	if err != nil {
		serverError(w, "list results", err)
		return
	}
	corrections, err := s.deps.Corrections.ListCorrections(ctx)
	if err != nil {
		serverError(w, "list corrections", err)
		return
	}

	corrected := make(map[string]bool, len(corrections))
	for _, c := range corrections {
		corrected[results.Canonical(c.SiteID)] = true
	}
	store.Overlay(rows, corrections)

	out := make([]SiteRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, SiteRow{InferenceResult: row, Corrected: corrected[results.Canonical(row.SiteID)]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := results.Canonical(chi.URLParam(r, "id"))

	row, err := s.findResult(ctx, id)
	if err != nil {
		serverError(w, "find result", err)
		return
	}
	correction, err := s.deps.Corrections.GetCorrection(ctx, id)
	if err != nil {
		serverError(w, "get correction", err)
		return
	}
	arts, err := evidence.Locate(ctx, s.deps.Evidence, id)
	if err != nil {
		serverError(w, "locate evidence", err)
		return
	}
	if row == nil && correction == nil && len(arts) == 0 {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	detail := SiteDetail{
		SiteID:     id,
		Result:     row,
		Correction: correction,
		Images:     make([]string, 0, len(arts)),
	}
	if row != nil && correction != nil {
		rows := []model.InferenceResult{*row}
		store.Overlay(rows, []model.Correction{*correction})
		detail.Result = &rows[0]
	}
	for _, a := range arts {
		detail.Images = append(detail.Images, "/images/"+a.Name)
	}
	if site, ok := s.deps.Sites.Get(id); ok {
		detail.Site = &site
		detail.EmbedURL = sites.EmbedURL(site, s.deps.Config.Key, s.deps.Config.FOV)
		detail.EmbedWidth = s.deps.Config.Width
		detail.EmbedHeight = s.deps.Config.Height
		if s.deps.StreetView != nil {
			md, err := s.deps.StreetView.Metadata(ctx, site.Latitude, site.Longitude)
			if err != nil {
				zap.L().Warn("street view metadata failed", zap.String("site_id", id), zap.Error(err))
			} else {
				detail.StreetView = md
			}
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) findResult(ctx context.Context, id string) (*model.InferenceResult, error) {
	rows, err := s.deps.Results.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if results.Canonical(rows[i].SiteID) == id {
			return &rows[i], nil
		}
	}
	return nil, nil
}

type correctionRequest struct {
	CorrectedBrand *string `json:"corrected_brand"`
	HasShop        *bool   `json:"has_shop"`
	Note           string  `json:"note"`
	CorrectedBy    string  `json:"corrected_by"`
}

func (s *Server) handlePutCorrection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := results.Canonical(chi.URLParam(r, "id"))

	var req correctionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CorrectedBrand == nil && req.HasShop == nil {
		writeError(w, http.StatusBadRequest, "corrected_brand or has_shop is required")
		return
	}

	row, err := s.findResult(ctx, id)
	if err != nil {
		serverError(w, "find result", err)
		return
	}
	c := model.Correction{
		SiteID:         id,
		CorrectedBrand: req.CorrectedBrand,
		HasShop:        req.HasShop,
		Note:           req.Note,
		CorrectedBy:    req.CorrectedBy,
	}
	if row != nil {
		c.OriginalBrand = row.ShopBrand
	}

	saved, err := s.deps.Corrections.UpsertCorrection(ctx, c)
	if err != nil {
		serverError(w, "save correction", err)
		return
	}
	zap.L().Info("correction saved", zap.String("site_id", id), zap.String("corrected_by", req.CorrectedBy))
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteCorrection(w http.ResponseWriter, r *http.Request) {
	id := results.Canonical(chi.URLParam(r, "id"))
	existing, err := s.deps.Corrections.GetCorrection(r.Context(), id)
	if err != nil {
		serverError(w, "get correction", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "correction not found")
		return
	}
	if err := s.deps.Corrections.DeleteCorrection(r.Context(), id); err != nil {
		serverError(w, "delete correction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") || strings.Contains(name, "\\") {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	ext := strings.ToLower(path.Ext(name))
	ctype, ok := imageTypes[ext]
	if !ok {
		if ctype = mime.TypeByExtension(ext); !strings.HasPrefix(ctype, "image/") {
			writeError(w, http.StatusNotFound, "not an image")
			return
		}
	}

	rc, err := s.deps.Evidence.Open(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	defer rc.Close() //nolint:errcheck

	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Warn("image write failed", zap.String("file", name), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("dashboard: "+action, zap.Error(err))
	writeError(w, http.StatusInternalServerError, action+" failed")
}
