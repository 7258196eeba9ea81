package model

import (
	"strings"
	"time"
)

// EvidenceArtifact is one image in the evidence store. The owning SiteID is
// the filename prefix before the first underscore.
type EvidenceArtifact struct {
	Name string `json:"name"`
	// Path is the location inside the store (file path or object key).
	Path string `json:"path"`
}

// Ext returns the lower-cased filename extension including the dot.
func (a EvidenceArtifact) Ext() string {
	i := strings.LastIndex(a.Name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(a.Name[i:])
}

// WorkItem is one site and its evidence, derived fresh on every run.
type WorkItem struct {
	SiteID    string             `json:"site_id"`
	Artifacts []EvidenceArtifact `json:"artifacts"`
}

// Site is a row of the site metadata sheet used for street-view lookups.
type Site struct {
	SiteID    string  `json:"site_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading"`
	Pitch     float64 `json:"pitch"`
}

// Correction is a human-reviewed brand label for a site. Corrections live
// in their own store and never modify the results table.
type Correction struct {
	ID             string    `json:"id"`
	SiteID         string    `json:"site_id"`
	OriginalBrand  *string   `json:"original_brand,omitempty"`
	CorrectedBrand *string   `json:"corrected_brand"`
	HasShop        *bool     `json:"has_shop,omitempty"`
	Note           string    `json:"note,omitempty"`
	CorrectedBy    string    `json:"corrected_by,omitempty"`
	CorrectedAt    time.Time `json:"corrected_at"`
}
