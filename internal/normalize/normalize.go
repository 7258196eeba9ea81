// Package normalize turns raw backend payloads into typed result fields.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/forecourt/internal/model"
)

// Options controls parsing.
type Options struct {
	// Lenient applies the literal-dialect correction for backends that
	// have no native JSON output mode.
	Lenient bool
}

// ParseFailure is returned when a payload cannot be read as a JSON object.
type ParseFailure struct {
	Raw   string
	Cause error
}

func (e *ParseFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse failure: %v", e.Cause)
	}
	return "parse failure"
}

func (e *ParseFailure) Unwrap() error {
	return e.Cause
}

// Fields holds the recognized keys of a classification payload. Absent or
// null keys stay nil.
type Fields struct {
	HasShop           *bool
	ShopBrand         *string
	Accuracy          *int
	UsedPhotoFileName *string
	UsedPhotoDate     *string
	IsStreetViewPhoto *bool
}

// Result builds the persisted row for siteID.
func (f *Fields) Result(siteID string, tokens int) model.InferenceResult {
	return model.InferenceResult{
		SiteID:            siteID,
		HasShop:           f.HasShop,
		ShopBrand:         f.ShopBrand,
		Accuracy:          f.Accuracy,
		Tokens:            tokens,
		UsedPhotoFileName: f.UsedPhotoFileName,
		UsedPhotoDate:     f.UsedPhotoDate,
		IsStreetViewPhoto: f.IsStreetViewPhoto,
	}
}

// Parse normalizes raw and projects the known fields.
func Parse(raw string, opts Options) (*Fields, error) {
	s := StripFence(strings.TrimSpace(raw))
	if opts.Lenient {
		s = FixDialect(s)
	}

	if s == "" {
		return nil, &ParseFailure{Raw: raw, Cause: fmt.Errorf("empty payload")}
	}
	if !gjson.Valid(s) {
		return nil, &ParseFailure{Raw: raw, Cause: fmt.Errorf("invalid json")}
	}
	doc := gjson.Parse(s)
	if !doc.IsObject() {
		return nil, &ParseFailure{Raw: raw, Cause: fmt.Errorf("payload is %s, want object", doc.Type)}
	}

	return &Fields{
		HasShop:           boolField(doc.Get("hasShop")),
		ShopBrand:         stringField(doc.Get("shopBrand")),
		Accuracy:          intField(doc.Get("accuracy")),
		UsedPhotoFileName: stringField(doc.Get("usedPhotoFileName")),
		UsedPhotoDate:     stringField(doc.Get("usedPhotoDate")),
		IsStreetViewPhoto: boolField(doc.Get("isStreetViewPhoto")),
	}, nil
}

// StripFence removes a surrounding markdown code fence (```json ... ```).
func StripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

func boolField(r gjson.Result) *bool {
	switch r.Type {
	case gjson.True:
		return model.Bool(true)
	case gjson.False:
		return model.Bool(false)
	case gjson.Number:
		return model.Bool(r.Num != 0)
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "true", "yes":
			return model.Bool(true)
		case "false", "no":
			return model.Bool(false)
		}
	}
	return nil
}

func stringField(r gjson.Result) *string {
	switch r.Type {
	case gjson.String:
		return model.String(r.Str)
	case gjson.Number:
		return model.String(r.Raw)
	}
	return nil
}

func intField(r gjson.Result) *int {
	switch r.Type {
	case gjson.Number:
		return model.Int(int(math.Round(r.Num)))
	case gjson.String:
		s := strings.TrimSuffix(strings.TrimSpace(r.Str), "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return model.Int(int(math.Round(f)))
	}
	return nil
}
