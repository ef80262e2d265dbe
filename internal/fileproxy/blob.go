package fileproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrUnauthorized means the blob store rejected the credentials.
	ErrUnauthorized = errors.New("blob store unauthorized")
	ErrNotFound     = errors.New("object not found")
	ErrMissingCreds = errors.New("missing Backblaze credentials")
)

// Object is one stored file.
type Object struct {
	Key string
	ID  string
}

// Download is an open object body.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Blob is the storage backend behind the proxy.
type Blob interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (id string, err error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) (*Download, error)
}

// Opener returns the backend for a credential scope.
type Opener func(Scope) (Blob, error)

// NewOpener builds backends lazily, one per scope, and reuses them.
func NewOpener(cfg Config) Opener {
	var (
		mu    sync.Mutex
		cache = make(map[Scope]Blob)
	)
	return func(s Scope) (Blob, error) {
		mu.Lock()
		defer mu.Unlock()
		if b, ok := cache[s]; ok {
			return b, nil
		}

		var (
			b   Blob
			err error
		)
		switch cfg.Backend {
		case BackendLocal:
			b, err = NewLocal(cfg.LocalDir)
		default:
			b, err = NewB2(cfg.For(s))
		}
		if err != nil {
			return nil, fmt.Errorf("open %s backend for scope %s: %w", cfg.Backend, s, err)
		}
		cache[s] = b
		return b, nil
	}
}
