package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecourt/internal/config"
	"github.com/sells-group/forecourt/internal/cost"
	"github.com/sells-group/forecourt/internal/evidence"
	"github.com/sells-group/forecourt/internal/inference"
	"github.com/sells-group/forecourt/internal/pipeline"
	"github.com/sells-group/forecourt/internal/results"
)

// openEvidence returns the configured evidence store and a release func.
func openEvidence(ctx context.Context, c config.EvidenceConfig) (evidence.Store, func(), error) {
	switch c.Driver {
	case "gcs":
		bs, err := evidence.NewBucketStore(ctx, c.Bucket, c.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return bs, func() { _ = bs.Close() }, nil
	case "", "local":
		return evidence.NewLocalStore(c.Dir), func() {}, nil
	default:
		return nil, nil, eris.Errorf("evidence: unknown driver %q", c.Driver)
	}
}

// classifyEnv holds everything a classify or pending run needs.
type classifyEnv struct {
	Pipeline *pipeline.Pipeline
	closers  []func()
}

// Close releases resources held by the environment.
func (e *classifyEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initClassify builds the evidence store, results table, inference client and
// pipeline. withClient=false skips backend construction so read-only commands
// work without API keys.
func initClassify(ctx context.Context, c *config.Config, withClient bool) (*classifyEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	env := &classifyEnv{}
	store, release, err := openEvidence(ctx, c.Evidence)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, release)

	table, err := results.New(c.Results)
	if err != nil {
		env.Close()
		return nil, err
	}

	var client inference.Client
	var instruction string
	if withClient {
		client, err = inference.New(ctx, c)
		if err != nil {
			env.Close()
			return nil, err
		}
		if cl, ok := client.(io.Closer); ok {
			env.closers = append(env.closers, func() { _ = cl.Close() })
		}
		instruction, err = inference.Instruction(c.Inference.Prompt)
		if err != nil {
			env.Close()
			return nil, err
		}
		zap.L().Info("inference backend ready",
			zap.String("backend", string(client.Backend())),
			zap.String("model", client.Model()),
			zap.String("prompt", c.Inference.Prompt),
		)
	}

	env.Pipeline = pipeline.New(store, table, client, cost.NewCalculator(c.Pricing), pipeline.Config{
		Instruction:       instruction,
		Timeout:           time.Duration(c.Pipeline.RequestTimeoutSecs) * time.Second,
		RequestsPerMinute: c.Pipeline.RequestsPerMinute,
	})
	return env, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
