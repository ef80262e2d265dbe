package fileproxy

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const metaDir = ".meta"

// Local stores objects as files under a directory. Each object has a JSON
// sidecar under .meta/ holding its id and content type.
type Local struct {
	root string
}

type localMeta struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(root, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &Local{root: root}, nil
}

// path resolves key inside root and rejects keys that escape it.
func (l *Local) path(base, key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.HasPrefix(clean, "/"+metaDir+"/") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(base, filepath.FromSlash(clean)), nil
}

func (l *Local) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	p, err := l.path(l.root, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	h := md5.New()
	if _, err := io.Copy(f, io.TeeReader(r, h)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	meta := localMeta{ID: hex.EncodeToString(h.Sum(nil)), ContentType: contentType}
	if err := l.writeMeta(key, meta); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func (l *Local) List(_ context.Context, prefix string) ([]Object, error) {
	var out []Object
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == filepath.Join(l.root, metaDir) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, _ := l.readMeta(key)
		out = append(out, Object{Key: key, ID: meta.ID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Local) Get(_ context.Context, key string) (*Download, error) {
	p, err := l.path(l.root, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	meta, _ := l.readMeta(key)
	return &Download{Body: f, ContentType: meta.ContentType, Size: info.Size()}, nil
}

func (l *Local) writeMeta(key string, m localMeta) error {
	p, err := l.path(filepath.Join(l.root, metaDir), key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (l *Local) readMeta(key string) (localMeta, error) {
	var m localMeta
	p, err := l.path(filepath.Join(l.root, metaDir), key)
	if err != nil {
		return m, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}
