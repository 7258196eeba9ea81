package model

// Backend identifies an inference provider.
type Backend string

const (
	BackendOpenAI    Backend = "openai"
	BackendGemini    Backend = "gemini"
	BackendAnthropic Backend = "anthropic"
)

// Valid reports whether b is a known backend.
func (b Backend) Valid() bool {
	switch b {
	case BackendOpenAI, BackendGemini, BackendAnthropic:
		return true
	}
	return false
}

// InferenceResult is one persisted row of the results table.
// Nil pointers are written as empty cells.
type InferenceResult struct {
	SiteID            string  `json:"SiteID" csv:"SiteID"`
	HasShop           *bool   `json:"hasShop" csv:"hasShop,omitempty"`
	ShopBrand         *string `json:"shopBrand" csv:"shopBrand,omitempty"`
	Accuracy          *int    `json:"accuracy" csv:"accuracy,omitempty"`
	Tokens            int     `json:"Tokens" csv:"Tokens"`
	UsedPhotoFileName *string `json:"usedPhotoFileName,omitempty" csv:"usedPhotoFileName,omitempty"`
	UsedPhotoDate     *string `json:"usedPhotoDate,omitempty" csv:"usedPhotoDate,omitempty"`
	IsStreetViewPhoto *bool   `json:"isStreetViewPhoto,omitempty" csv:"isStreetViewPhoto,omitempty"`
}

// ResultColumns is the column order of the results table.
var ResultColumns = []string{
	"SiteID",
	"hasShop",
	"shopBrand",
	"accuracy",
	"Tokens",
	"usedPhotoFileName",
	"usedPhotoDate",
	"isStreetViewPhoto",
}

// TokenUsage tracks token consumption for one inference call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Total returns TotalTokens, falling back to input+output when the
// provider did not report a total.
func (u TokenUsage) Total() int64 {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

// RawResponse is the unparsed payload returned by a backend.
type RawResponse struct {
	Text  string     `json:"text"`
	Model string     `json:"model"`
	Usage TokenUsage `json:"usage"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
