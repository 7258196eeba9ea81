package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// Client performs Google Street View Static API operations.
type Client interface {
	// Metadata reports whether a panorama exists near the location and when
	// it was captured. It does not consume image quota.
	Metadata(ctx context.Context, lat, lng float64) (*Metadata, error)
}

// Metadata is the Street View image metadata response.
type Metadata struct {
	Status    string  `json:"status"`
	Date      string  `json:"date,omitempty"`
	PanoID    string  `json:"pano_id,omitempty"`
	Copyright string  `json:"copyright,omitempty"`
	Location  *LatLng `json:"location,omitempty"`
	ErrorMsg  string  `json:"error_message,omitempty"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Available reports whether a panorama was found.
func (m *Metadata) Available() bool {
	return m != nil && m.Status == "OK"
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Street View metadata client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Metadata(ctx context.Context, lat, lng float64) (*Metadata, error) {
	q := url.Values{}
	q.Set("location", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/streetview/metadata?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("google: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Metadata
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	switch result.Status {
	case "OK", "ZERO_RESULTS", "NOT_FOUND":
		return &result, nil
	default:
		return nil, eris.Errorf("google: metadata status %s: %s", result.Status, result.ErrorMsg)
	}
}
