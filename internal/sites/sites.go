// Package sites loads the site metadata sheet (coordinates and camera
// angles) and builds street-view embed links from it.
package sites

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecourt/internal/model"
	"github.com/sells-group/forecourt/internal/results"
)

const embedBaseURL = "https://www.google.com/maps/embed/v1/streetview"

type row struct {
	SiteID    string `csv:"siteid"`
	Latitude  string `csv:"latitude"`
	Longitude string `csv:"longitude"`
	Heading   string `csv:"heading"`
	Pitch     string `csv:"pitch"`
}

// Catalog indexes site metadata by canonical SiteID.
type Catalog struct {
	sites map[string]model.Site
}

// Load reads the metadata CSV at path. A missing file yields an empty
// catalog; rows without usable coordinates are skipped.
func Load(ctx context.Context, path string) (*Catalog, error) {
	c := &Catalog{sites: map[string]model.Site{}}
	if path == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("site metadata not found", zap.String("path", path))
		return c, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sites: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return c, c.read(ctx, f)
}

func (c *Catalog) read(ctx context.Context, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "sites: read header")
	}

	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "sites: load")
		}
		var rw row
		err := dec.Decode(&rw)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "sites: decode row")
		}

		site, ok := rw.site()
		if !ok {
			zap.L().Debug("skipping site row", zap.String("site_id", rw.SiteID))
			continue
		}
		c.sites[site.SiteID] = site
	}
}

func (r row) site() (model.Site, bool) {
	id := results.Canonical(r.SiteID)
	if id == "" {
		return model.Site{}, false
	}
	lat, ok1 := parseFloat(r.Latitude)
	lng, ok2 := parseFloat(r.Longitude)
	if !ok1 || !ok2 {
		return model.Site{}, false
	}
	heading, _ := parseFloat(r.Heading)
	pitch, _ := parseFloat(r.Pitch)
	return model.Site{SiteID: id, Latitude: lat, Longitude: lng, Heading: heading, Pitch: pitch}, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Get returns the metadata for siteID.
func (c *Catalog) Get(siteID string) (model.Site, bool) {
	s, ok := c.sites[results.Canonical(siteID)]
	return s, ok
}

// Len returns the number of indexed sites.
func (c *Catalog) Len() int { return len(c.sites) }

// EmbedURL returns the Maps Embed API street-view link for s. An empty key
// yields an empty string.
func EmbedURL(s model.Site, key string, fov int) string {
	if key == "" {
		return ""
	}
	q := url.Values{}
	q.Set("key", key)
	q.Set("location", formatFloat(s.Latitude)+","+formatFloat(s.Longitude))
	q.Set("heading", formatFloat(s.Heading))
	q.Set("pitch", formatFloat(s.Pitch))
	q.Set("fov", strconv.Itoa(fov))
	return embedBaseURL + "?" + q.Encode()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
