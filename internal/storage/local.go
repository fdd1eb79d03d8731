package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore writes objects below Dir and serves them from BaseURL. The HTTP
// router mounts Dir at the path of BaseURL.
type LocalStore struct {
	Dir     string
	BaseURL string
}

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: baseURL}, nil
}

// Put implements PhotoStore. The file is written to a temporary name first
// and renamed into place so readers never see a partial object.
func (s *LocalStore) Put(ctx context.Context, key, _ string, r io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.Dir, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("local store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("local store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("local store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("local store: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("local store: %w", err)
	}
	return joinURL(s.BaseURL, k), nil
}

// Delete implements PhotoStore.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.Dir, filepath.FromSlash(k)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local store: %w", err)
	}
	return nil
}
