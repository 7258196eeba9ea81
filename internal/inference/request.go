// Package inference builds multimodal classification requests and submits
// them to OpenAI, Gemini or Anthropic.
package inference

import (
	"context"
	"encoding/base64"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecourt/internal/evidence"
	"github.com/sells-group/forecourt/internal/model"
)

// MaxEvidence caps the number of images sent per site.
const MaxEvidence = 10

// geminiMIME is declared for every Gemini image regardless of extension.
const geminiMIME = "image/jpeg"

var inlineMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// Image is one encoded evidence artifact.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// DataURL returns the inline base64 data URL of the image.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Request is the packaged input for one site.
type Request struct {
	Backend     model.Backend
	Instruction string
	Images      []Image
}

// Truncate keeps the first MaxEvidence artifacts.
func Truncate(artifacts []model.EvidenceArtifact) []model.EvidenceArtifact {
	if len(artifacts) > MaxEvidence {
		return artifacts[:MaxEvidence]
	}
	return artifacts
}

// MIMEType returns the declared MIME type of an artifact for backend.
func MIMEType(backend model.Backend, a model.EvidenceArtifact) (string, error) {
	if backend == model.BackendGemini {
		return geminiMIME, nil
	}
	mime, ok := inlineMIME[a.Ext()]
	if !ok {
		return "", &UnsupportedFormatError{Name: a.Name, Ext: a.Ext()}
	}
	return mime, nil
}

// Build truncates artifacts, validates every extension for the backend and
// then reads the image bytes. Any failure returns no request.
func Build(ctx context.Context, store evidence.Store, artifacts []model.EvidenceArtifact, instruction string, backend model.Backend) (*Request, error) {
	if !backend.Valid() {
		return nil, eris.Errorf("inference: unknown backend %q", backend)
	}
	if instruction == "" {
		return nil, eris.New("inference: empty instruction")
	}

	artifacts = Truncate(artifacts)
	mimes := make([]string, len(artifacts))
	for i, a := range artifacts {
		mime, err := MIMEType(backend, a)
		if err != nil {
			return nil, err
		}
		mimes[i] = mime
	}

	images := make([]Image, 0, len(artifacts))
	for i, a := range artifacts {
		data, err := evidence.ReadArtifact(ctx, store, a)
		if err != nil {
			return nil, eris.Wrapf(err, "inference: read %s", a.Name)
		}
		images = append(images, Image{Name: a.Name, MIMEType: mimes[i], Data: data})
	}

	return &Request{
		Backend:     backend,
		Instruction: instruction,
		Images:      images,
	}, nil
}
