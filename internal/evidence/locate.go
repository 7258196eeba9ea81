package evidence

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecourt/internal/model"
)

// Separator splits the SiteID from the rest of an evidence filename.
const Separator = "_"

// SiteIDFromName returns the SiteID encoded in an evidence filename.
func SiteIDFromName(name string) (string, bool) {
	id, _, ok := strings.Cut(name, Separator)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Locate returns the evidence for siteID sorted by filename.
func Locate(ctx context.Context, store Store, siteID string) ([]model.EvidenceArtifact, error) {
	if siteID == "" {
		return nil, eris.New("evidence: empty site id")
	}

	names, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	prefix := siteID + Separator
	var out []model.EvidenceArtifact
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, model.EvidenceArtifact{
			Name: name,
			Path: store.Path(name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// WorkItem locates the evidence for siteID and pairs it with the ID. An
// item with no artifacts means the site has nothing to classify.
func WorkItem(ctx context.Context, store Store, siteID string) (model.WorkItem, error) {
	arts, err := Locate(ctx, store, siteID)
	if err != nil {
		return model.WorkItem{}, err
	}
	return model.WorkItem{SiteID: siteID, Artifacts: arts}, nil
}

// SiteIDs returns the sorted, de-duplicated identifier universe of the store.
func SiteIDs(ctx context.Context, store Store) ([]string, error) {
	names, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(names))
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := SiteIDFromName(name)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ReadArtifact loads the bytes of one artifact.
func ReadArtifact(ctx context.Context, store Store, a model.EvidenceArtifact) ([]byte, error) {
	rc, err := store.Open(ctx, a.Name)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "evidence: read %s", a.Name)
	}
	return data, nil
}
