package results

import (
	"context"

	"github.com/rotisserie/eris"
)

// Pending returns the members of universe whose canonical SiteID is not in
// the table, preserving universe order. Identifiers are returned in their
// original spelling so they still match evidence filenames.
func Pending(ctx context.Context, universe []string, t Table) ([]string, error) {
	done, err := t.SiteIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "results: read processed ids")
	}

	processed := make(map[string]struct{}, len(done))
	for _, id := range done {
		processed[Canonical(id)] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{}, len(universe))
	for _, id := range universe {
		c := Canonical(id)
		if c == "" {
			continue
		}
		if _, ok := processed[c]; ok {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
