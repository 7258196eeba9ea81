package inference

import (
	"context"
	"encoding/base64"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecourt/internal/config"
	"github.com/sells-group/forecourt/internal/model"
	"github.com/sells-group/forecourt/pkg/anthropic"
	"github.com/sells-group/forecourt/pkg/gemini"
	"github.com/sells-group/forecourt/pkg/openai"
)

// Client submits a built request and returns the raw payload.
type Client interface {
	Backend() model.Backend
	Model() string
	// StrictJSON reports whether the backend was asked for JSON output,
	// in which case no literal-dialect correction is needed.
	StrictJSON() bool
	Submit(ctx context.Context, req *Request) (*model.RawResponse, error)
}

// New constructs the backend selected in cfg.Inference.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch model.Backend(cfg.Inference.Backend) {
	case model.BackendOpenAI:
		if cfg.OpenAI.Key == "" {
			return nil, eris.New("inference: openai.key is required")
		}
		c := openai.NewClient(cfg.OpenAI.Key, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		return NewOpenAI(c, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens), nil
	case model.BackendGemini:
		c, err := gemini.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, eris.Wrap(err, "inference: gemini client")
		}
		return NewGemini(c, cfg.Gemini.Model, cfg.Gemini.JSONMode), nil
	case model.BackendAnthropic:
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("inference: anthropic.key is required")
		}
		c := anthropic.NewClient(cfg.Anthropic.Key)
		return NewAnthropic(c, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	default:
		return nil, eris.Errorf("inference: unknown backend %q", cfg.Inference.Backend)
	}
}

func checkBackend(c Client, req *Request) error {
	if req == nil {
		return eris.New("inference: nil request")
	}
	if req.Backend != c.Backend() {
		return eris.Errorf("inference: request built for %s submitted to %s", req.Backend, c.Backend())
	}
	return nil
}

// OpenAIBackend submits requests as chat completions with inline data URLs
// and a json_object response format.
type OpenAIBackend struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAI wraps an OpenAI client.
func NewOpenAI(c openai.Client, model string, maxTokens int) *OpenAIBackend {
	return &OpenAIBackend{client: c, model: model, maxTokens: maxTokens}
}

func (b *OpenAIBackend) Backend() model.Backend { return model.BackendOpenAI }
func (b *OpenAIBackend) Model() string          { return b.model }
func (b *OpenAIBackend) StrictJSON() bool       { return true }

func (b *OpenAIBackend) Submit(ctx context.Context, req *Request) (*model.RawResponse, error) {
	if err := checkBackend(b, req); err != nil {
		return nil, err
	}

	parts := make([]openai.ContentPart, 0, len(req.Images)+1)
	parts = append(parts, openai.TextPart(req.Instruction))
	for _, img := range req.Images {
		parts = append(parts, openai.ImagePart(img.DataURL()))
	}

	resp, err := b.client.ChatCompletion(ctx, openai.ChatRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		JSONMode:  true,
		Messages:  []openai.Message{{Role: "user", Content: parts}},
	})
	if err != nil {
		return nil, &InferenceError{Backend: model.BackendOpenAI, Cause: err}
	}

	m := resp.Model
	if m == "" {
		m = b.model
	}
	return &model.RawResponse{
		Text:  resp.Text(),
		Model: m,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// GeminiBackend submits raw image bytes. Usage comes from a CountTokens
// pre-flight on the input, so output tokens are always reported as 0.
type GeminiBackend struct {
	client   gemini.Client
	model    string
	jsonMode bool
}

// NewGemini wraps a Gemini client.
func NewGemini(c gemini.Client, model string, jsonMode bool) *GeminiBackend {
	return &GeminiBackend{client: c, model: model, jsonMode: jsonMode}
}

func (b *GeminiBackend) Backend() model.Backend { return model.BackendGemini }
func (b *GeminiBackend) Model() string          { return b.model }
func (b *GeminiBackend) StrictJSON() bool       { return b.jsonMode }

// Close releases the underlying SDK client.
func (b *GeminiBackend) Close() error { return b.client.Close() }

func (b *GeminiBackend) Submit(ctx context.Context, req *Request) (*model.RawResponse, error) {
	if err := checkBackend(b, req); err != nil {
		return nil, err
	}

	greq := gemini.Request{
		Model:    b.model,
		Prompt:   req.Instruction,
		JSONMode: b.jsonMode,
		Images:   make([]gemini.Blob, 0, len(req.Images)),
	}
	for _, img := range req.Images {
		greq.Images = append(greq.Images, gemini.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}

	input, err := b.client.CountTokens(ctx, greq)
	if err != nil {
		return nil, &InferenceError{Backend: model.BackendGemini, Cause: err}
	}

	resp, err := b.client.Generate(ctx, greq)
	if err != nil {
		return nil, &InferenceError{Backend: model.BackendGemini, Cause: err}
	}

	return &model.RawResponse{
		Text:  resp.Text,
		Model: b.model,
		Usage: model.TokenUsage{
			InputTokens: input,
			TotalTokens: input,
		},
	}, nil
}

// AnthropicBackend submits base64 image blocks through the Messages API.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic wraps an Anthropic client.
func NewAnthropic(c anthropic.Client, model string, maxTokens int) *AnthropicBackend {
	return &AnthropicBackend{client: c, model: model, maxTokens: maxTokens}
}

func (b *AnthropicBackend) Backend() model.Backend { return model.BackendAnthropic }
func (b *AnthropicBackend) Model() string          { return b.model }
func (b *AnthropicBackend) StrictJSON() bool       { return false }

func (b *AnthropicBackend) Submit(ctx context.Context, req *Request) (*model.RawResponse, error) {
	if err := checkBackend(b, req); err != nil {
		return nil, err
	}

	images := make([]anthropic.Image, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, anthropic.Image{
			MediaType: img.MIMEType,
			Data:      base64.StdEncoding.EncodeToString(img.Data),
		})
	}

	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.model,
		MaxTokens: int64(b.maxTokens),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: req.Instruction,
			Images:  images,
		}},
	})
	if err != nil {
		return nil, &InferenceError{Backend: model.BackendAnthropic, Cause: err}
	}

	return &model.RawResponse{
		Text:  resp.Text(),
		Model: b.model,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
