package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/forecourt/internal/cost"
	"github.com/sells-group/forecourt/internal/evidence"
	"github.com/sells-group/forecourt/internal/inference"
	"github.com/sells-group/forecourt/internal/model"
	"github.com/sells-group/forecourt/internal/normalize"
	"github.com/sells-group/forecourt/internal/results"
)

// ErrNoEvidence is returned by Process when a site has no photos.
var ErrNoEvidence = errors.New("pipeline: no evidence for site")

// Config holds the per-run settings of a Pipeline.
type Config struct {
	Instruction       string
	Timeout           time.Duration
	RequestsPerMinute float64
}

// Options narrows a single Run.
type Options struct {
	// Limit caps the number of sites attempted; 0 means no cap.
	Limit int
	// DryRun computes the pending set without calling any backend.
	DryRun bool
}

// Summary reports the outcome of a Run.
type Summary struct {
	RunID     string   `json:"run_id"`
	Backend   string   `json:"backend"`
	Universe  int      `json:"universe"`
	Pending   []string `json:"pending"`
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Tokens    int64    `json:"tokens"`
	CostUSD   float64  `json:"cost_usd"`
}

// Pipeline classifies unprocessed sites one at a time and appends a row per
// successfully parsed response.
type Pipeline struct {
	store   evidence.Store
	table   results.Table
	client  inference.Client
	costs   *cost.Calculator
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Pipeline.
func New(store evidence.Store, table results.Table, client inference.Client, costs *cost.Calculator, cfg Config) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	var lim *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}
	return &Pipeline{
		store:   store,
		table:   table,
		client:  client,
		costs:   costs,
		cfg:     cfg,
		limiter: lim,
	}
}

// PendingSites returns the sorted identifier universe of the evidence store
// minus the sites already present in the results table.
func (p *Pipeline) PendingSites(ctx context.Context) (universe, pending []string, err error) {
	universe, err = evidence.SiteIDs(ctx, p.store)
	if err != nil {
		return nil, nil, err
	}
	pending, err = results.Pending(ctx, universe, p.table)
	if err != nil {
		return nil, nil, err
	}
	return universe, pending, nil
}

// Run processes every pending site sequentially. Per-site failures are
// logged and counted; the site stays pending for the next run. A missing
// evidence root, a held table lock or a failed append abort the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	var modelName string
	if p.client != nil {
		sum.Backend = string(p.client.Backend())
		modelName = p.client.Model()
	} else if !opts.DryRun {
		return nil, eris.New("pipeline: no inference client configured")
	}
	log := zap.L().With(
		zap.String("run_id", sum.RunID),
		zap.String("backend", sum.Backend),
		zap.String("model", modelName),
	)

	if !opts.DryRun {
		lock, err := results.Lock(p.table)
		if err != nil {
			return nil, err
		}
		defer lock.Unlock() //nolint:errcheck
	}

	universe, pending, err := p.PendingSites(ctx)
	if err != nil {
		return nil, err
	}
	sum.Universe = len(universe)
	if opts.Limit > 0 && opts.Limit < len(pending) {
		pending = pending[:opts.Limit]
	}
	sum.Pending = pending

	log.Info("pipeline: starting run",
		zap.Int("universe", sum.Universe),
		zap.Int("pending", len(pending)),
		zap.Bool("dry_run", opts.DryRun),
	)
	if opts.DryRun {
		return sum, nil
	}

	for i, siteID := range pending {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return sum, eris.Wrap(err, "pipeline: wait for rate limiter")
			}
		}
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "pipeline: run cancelled")
		}

		sum.Attempted++
		siteLog := log.With(zap.String("site_id", siteID), zap.Int("index", i+1), zap.Int("total", len(pending)))

		res, usd, err := p.process(ctx, siteID)
		switch {
		case err == nil:
			sum.Succeeded++
			sum.Tokens += int64(res.Tokens)
			sum.CostUSD += usd
			siteLog.Info("pipeline: site classified",
				zap.Boolp("has_shop", res.HasShop),
				zap.Stringp("shop_brand", res.ShopBrand),
				zap.Int("tokens", res.Tokens),
			)
		case errors.Is(err, ErrNoEvidence):
			sum.Skipped++
			siteLog.Warn("pipeline: no evidence, skipping")
		case isFatal(err):
			return sum, err
		default:
			sum.Failed++
			sum.CostUSD += usd
			siteLog.Warn("pipeline: site failed, left pending",
				zap.String("kind", failureKind(err)),
				zap.Error(err),
			)
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("attempted", sum.Attempted),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
		zap.Int64("tokens", sum.Tokens),
		zap.Float64("cost_usd", sum.CostUSD),
	)
	return sum, nil
}

// Process classifies one site and appends its row.
func (p *Pipeline) Process(ctx context.Context, siteID string) (*model.InferenceResult, error) {
	res, _, err := p.process(ctx, siteID)
	return res, err
}

func (p *Pipeline) process(ctx context.Context, siteID string) (*model.InferenceResult, float64, error) {
	item, err := evidence.WorkItem(ctx, p.store, siteID)
	if err != nil {
		return nil, 0, err
	}
	if len(item.Artifacts) == 0 {
		return nil, 0, ErrNoEvidence
	}

	req, err := inference.Build(ctx, p.store, item.Artifacts, p.cfg.Instruction, p.client.Backend())
	if err != nil {
		return nil, 0, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	raw, err := p.client.Submit(callCtx, req)
	cancel()
	if err != nil {
		var ie *inference.InferenceError
		if !errors.As(err, &ie) {
			err = &inference.InferenceError{Backend: p.client.Backend(), Cause: err}
		}
		return nil, 0, err
	}

	var usd float64
	if p.costs != nil {
		usd = p.costs.Log(siteID, raw.Model, raw.Usage)
	}

	fields, err := normalize.Parse(raw.Text, normalize.Options{Lenient: !p.client.StrictJSON()})
	if err != nil {
		return nil, usd, err
	}

	res := fields.Result(siteID, int(raw.Usage.Total()))
	if err := p.table.Append(ctx, res); err != nil {
		return nil, usd, &appendError{cause: err}
	}
	return &res, usd, nil
}

type appendError struct {
	cause error
}

func (e *appendError) Error() string { return "pipeline: append result: " + e.cause.Error() }
func (e *appendError) Unwrap() error { return e.cause }

func isFatal(err error) bool {
	var nf *evidence.NotFoundError
	var ae *appendError
	return errors.As(err, &nf) || errors.As(err, &ae) ||
		errors.Is(err, context.Canceled) && !isInference(err)
}

func isInference(err error) bool {
	var ie *inference.InferenceError
	return errors.As(err, &ie)
}

func failureKind(err error) string {
	var (
		ufe *inference.UnsupportedFormatError
		ie  *inference.InferenceError
		pf  *normalize.ParseFailure
	)
	switch {
	case errors.As(err, &ufe):
		return "unsupported_format"
	case errors.As(err, &ie):
		return "inference"
	case errors.As(err, &pf):
		return "parse"
	default:
		return "other"
	}
}
