// Package localfs implements media.StorageProvider on the local
// filesystem under <dataRoot>/media/<key>.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zapdeskhq/zapdesk/internal/media"
)

// Provider stores media assets under a local data root.
type Provider struct {
	dataRoot string
}

// New creates a filesystem storage provider rooted at dataRoot.
func New(dataRoot string) (*Provider, error) {
	abs, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}
	return &Provider{dataRoot: abs}, nil
}

func (p *Provider) Put(_ context.Context, key string, reader io.Reader) error {
	dest, err := p.hostPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (p *Provider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	dest, err := p.hostPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, media.ErrAssetNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (p *Provider) Delete(_ context.Context, key string) error {
	dest, err := p.hostPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// AccessPath returns the absolute filesystem path for a storage key, or
// "" for an invalid key.
func (p *Provider) AccessPath(key string) string {
	dest, err := p.hostPath(key)
	if err != nil {
		return ""
	}
	return dest
}

// hostPath converts a storage key into an on-disk path, rejecting
// absolute keys and traversal attempts.
func (p *Provider) hostPath(key string) (string, error) {
	clean := filepath.Clean(key)
	if clean == "." || strings.TrimSpace(clean) == "" {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: absolute key %q", media.ErrPathTraversal, key)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", media.ErrPathTraversal, key)
	}
	joined := filepath.Join(p.dataRoot, "media", clean)
	if !strings.HasPrefix(joined, p.dataRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", media.ErrPathTraversal, key)
	}
	return joined, nil
}
