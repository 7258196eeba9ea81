// Package results persists classification rows in an append-only table and
// computes which sites still need processing.
package results

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/forecourt/internal/model"
)

// record is the on-disk string form of one row. Tables written by older
// tooling carry pandas spellings (True, 85.0) so decoding is tolerant.
type record struct {
	SiteID            string `csv:"SiteID"`
	HasShop           string `csv:"hasShop"`
	ShopBrand         string `csv:"shopBrand"`
	Accuracy          string `csv:"accuracy"`
	Tokens            string `csv:"Tokens"`
	UsedPhotoFileName string `csv:"usedPhotoFileName"`
	UsedPhotoDate     string `csv:"usedPhotoDate"`
	IsStreetViewPhoto string `csv:"isStreetViewPhoto"`
}

func toRecord(r model.InferenceResult) record {
	return record{
		SiteID:            r.SiteID,
		HasShop:           formatBool(r.HasShop),
		ShopBrand:         formatString(r.ShopBrand),
		Accuracy:          formatInt(r.Accuracy),
		Tokens:            strconv.Itoa(r.Tokens),
		UsedPhotoFileName: formatString(r.UsedPhotoFileName),
		UsedPhotoDate:     formatString(r.UsedPhotoDate),
		IsStreetViewPhoto: formatBool(r.IsStreetViewPhoto),
	}
}

func (rec record) result() model.InferenceResult {
	tokens := 0
	if n := parseInt(rec.Tokens); n != nil {
		tokens = *n
	}
	return model.InferenceResult{
		SiteID:            strings.TrimSpace(rec.SiteID),
		HasShop:           parseBool(rec.HasShop),
		ShopBrand:         parseString(rec.ShopBrand),
		Accuracy:          parseInt(rec.Accuracy),
		Tokens:            tokens,
		UsedPhotoFileName: parseString(rec.UsedPhotoFileName),
		UsedPhotoDate:     parseString(rec.UsedPhotoDate),
		IsStreetViewPhoto: parseBool(rec.IsStreetViewPhoto),
	}
}

// values returns the record keyed by column name.
func (rec record) values() map[string]string {
	return map[string]string{
		"SiteID":            rec.SiteID,
		"hasShop":           rec.HasShop,
		"shopBrand":         rec.ShopBrand,
		"accuracy":          rec.Accuracy,
		"Tokens":            rec.Tokens,
		"usedPhotoFileName": rec.UsedPhotoFileName,
		"usedPhotoDate":     rec.UsedPhotoDate,
		"isStreetViewPhoto": rec.IsStreetViewPhoto,
	}
}

func recordFromValues(v map[string]string) record {
	return record{
		SiteID:            v["SiteID"],
		HasShop:           v["hasShop"],
		ShopBrand:         v["shopBrand"],
		Accuracy:          v["accuracy"],
		Tokens:            v["Tokens"],
		UsedPhotoFileName: v["usedPhotoFileName"],
		UsedPhotoDate:     v["usedPhotoDate"],
		IsStreetViewPhoto: v["isStreetViewPhoto"],
	}
}

// row lays the record out in header order. Unknown columns are left empty.
func (rec record) row(header []string) []string {
	vals := rec.values()
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = vals[col]
	}
	return out
}

func formatBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func formatString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func isNull(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}

func parseBool(s string) *bool {
	s = strings.TrimSpace(s)
	if isNull(s) {
		return nil
	}
	switch strings.ToLower(s) {
	case "true", "1", "1.0", "yes":
		return model.Bool(true)
	case "false", "0", "0.0", "no":
		return model.Bool(false)
	}
	return nil
}

func parseString(s string) *string {
	if isNull(strings.TrimSpace(s)) {
		return nil
	}
	return model.String(s)
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if isNull(s) {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return model.Int(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return model.Int(int(math.Round(f)))
}
