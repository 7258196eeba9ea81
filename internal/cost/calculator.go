package cost

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/forecourt/internal/config"
	"github.com/sells-group/forecourt/internal/model"
)

// Calculator computes estimated USD cost for inference calls.
type Calculator struct {
	rates map[string]config.ModelPricing
}

// NewCalculator creates a Calculator with the given pricing table.
func NewCalculator(p config.PricingConfig) *Calculator {
	rates := p.Models
	if rates == nil {
		rates = config.DefaultPricing()
	}
	return &Calculator{rates: rates}
}

// rate looks up a model, falling back to the longest configured prefix so
// dated model IDs (gpt-4o-2024-08-06) price like their family.
func (c *Calculator) rate(m string) (config.ModelPricing, bool) {
	if r, ok := c.rates[m]; ok {
		return r, true
	}
	var (
		best    config.ModelPricing
		bestLen int
	)
	for name, r := range c.rates {
		if strings.HasPrefix(m, name) && len(name) > bestLen {
			best, bestLen = r, len(name)
		}
	}
	return best, bestLen > 0
}

// Estimate returns the USD cost of one call. Unknown models cost 0.
// When only a total is known it is priced at the input rate.
func (c *Calculator) Estimate(m string, u model.TokenUsage) float64 {
	r, ok := c.rate(m)
	if !ok {
		return 0
	}
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return (float64(u.TotalTokens) / 1e6) * r.Input
	}
	return (float64(u.InputTokens)/1e6)*r.Input + (float64(u.OutputTokens)/1e6)*r.Output
}

// Log writes a cost audit line for one call.
func (c *Calculator) Log(siteID, m string, u model.TokenUsage) float64 {
	usd := c.Estimate(m, u)
	zap.L().Info("inference cost",
		zap.String("site_id", siteID),
		zap.String("model", m),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("total_tokens", u.Total()),
		zap.Float64("cost_usd", usd),
	)
	return usd
}
