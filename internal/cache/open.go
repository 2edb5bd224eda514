package cache

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/mfenderov/postseek/internal/config"
	"github.com/spf13/afero"
)

// Stores holds the four isolated stores, one per pipeline stage output.
type Stores struct {
	Pages      *Store // page-{n}: raw search-results HTML
	Posts      *Store // post-{id}: raw post fragment
	Processed  *Store // processedPost-{id}: models.Post
	Embeddings *Store // embedding-{id}: models.EmbeddedPost
}

// NewStores builds the stores from a backend factory keyed by store name.
func NewStores(backend func(name string) Backend) *Stores {
	return &Stores{
		Pages:      NewStore("pages", backend("pages")),
		Posts:      NewStore("posts", backend("posts")),
		Processed:  NewStore("processed", backend("processed")),
		Embeddings: NewStore("embeddings", backend("embeddings")),
	}
}

// NewMemStores returns stores backed by an in-memory filesystem.
func NewMemStores() *Stores {
	fs := afero.NewMemMapFs()
	return NewStores(func(name string) Backend {
		return NewDirBackend(fs, name)
	})
}

// Init initializes every store.
func (s *Stores) Init(ctx context.Context) error {
	for _, st := range []*Store{s.Pages, s.Posts, s.Processed, s.Embeddings} {
		if err := st.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Open builds and initializes the stores selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Cache) (*Stores, error) {
	var stores *Stores

	switch cfg.Backend {
	case "", "dir":
		fs := afero.NewOsFs()
		stores = NewStores(func(name string) Backend {
			return NewDirBackend(fs, filepath.Join(cfg.Dir, name))
		})
	case "s3":
		client, err := NewS3Client(S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		stores = NewStores(func(name string) Backend {
			return NewS3Backend(client, cfg.S3.Bucket, path.Join(cfg.S3.Prefix, name))
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	if err := stores.Init(ctx); err != nil {
		return nil, err
	}
	return stores, nil
}
