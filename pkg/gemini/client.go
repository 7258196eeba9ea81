// Package gemini wraps the Gemini generative API for multimodal prompts.
package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// Client performs Gemini generate and token-count calls.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	CountTokens(ctx context.Context, req Request) (int64, error)
	Close() error
}

// Request is a single-turn multimodal prompt. Images follow the text.
type Request struct {
	Model       string
	Prompt      string
	Images      []Blob
	JSONMode    bool
	Temperature *float32
}

// Blob is a raw inline payload tagged with a MIME type.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Response is the text of the first candidate plus usage metadata when the
// API reports it.
type Response struct {
	Text            string
	Model           string
	PromptTokens    int64
	CandidateTokens int64
	TotalTokens     int64
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini client. Extra options are passed to the SDK.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) model(req Request) *genai.GenerativeModel {
	m := c.client.GenerativeModel(req.Model)
	if req.Temperature != nil {
		m.SetTemperature(*req.Temperature)
	}
	if req.JSONMode {
		m.ResponseMIMEType = "application/json"
	}
	return m
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.model(req).GenerateContent(ctx, parts(req)...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	out := &Response{Text: text, Model: req.Model}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int64(u.PromptTokenCount)
		out.CandidateTokens = int64(u.CandidatesTokenCount)
		out.TotalTokens = int64(u.TotalTokenCount)
	}
	return out, nil
}

func (c *sdkClient) CountTokens(ctx context.Context, req Request) (int64, error) {
	resp, err := c.model(req).CountTokens(ctx, parts(req)...)
	if err != nil {
		return 0, eris.Wrap(err, "gemini: count tokens")
	}
	return int64(resp.TotalTokens), nil
}

func (c *sdkClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func parts(req Request) []genai.Part {
	out := make([]genai.Part, 0, len(req.Images)+1)
	if req.Prompt != "" {
		out = append(out, genai.Text(req.Prompt))
	}
	for _, img := range req.Images {
		out = append(out, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return out
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", eris.New("gemini: no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", eris.New("gemini: no content in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", eris.New("gemini: no text parts in response")
	}
	return sb.String(), nil
}
