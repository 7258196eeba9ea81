package evidence

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BucketStore reads evidence from a GCS bucket under a key prefix. Object
// names are exposed relative to the prefix; nested "directories" are skipped.
type BucketStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBucketStore creates a GCS-backed store. Credentials come from the
// environment unless opts override them.
func NewBucketStore(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*BucketStore, error) {
	opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "evidence: create storage client")
	}
	return &BucketStore{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(prefix),
	}, nil
}

func normalizePrefix(p string) string {
	p = strings.TrimLeft(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// Root returns the gs:// URL of the prefix.
func (s *BucketStore) Root() string {
	return "gs://" + s.bucket + "/" + s.prefix
}

func (s *BucketStore) Path(name string) string {
	return s.prefix + name
}

// List returns object names directly under the prefix, relative to it.
func (s *BucketStore) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if errors.Is(err, storage.ErrBucketNotExist) {
			return nil, &NotFoundError{Root: s.Root(), Cause: err}
		}
		if err != nil {
			return nil, eris.Wrapf(err, "evidence: list %s", s.Root())
		}
		if name, ok := relativeName(s.prefix, attrs.Name); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// relativeName strips prefix from key and rejects nested keys and
// directory placeholders.
func relativeName(prefix, key string) (string, bool) {
	name := strings.TrimPrefix(key, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func (s *BucketStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.Path(name)).NewReader(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "evidence: open %s", s.Path(name))
	}
	return r, nil
}

// Close releases the storage client.
func (s *BucketStore) Close() error {
	return s.client.Close()
}
