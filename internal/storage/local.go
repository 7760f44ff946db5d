package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore writes blobs under a directory on disk.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{root: root, baseURL: baseURL}, nil
}

func (s *LocalStore) Put(_ context.Context, filename, contentType string, data []byte) (Blob, error) {
	pathname := newPathname(filename)
	full := filepath.Join(s.root, filepath.FromSlash(pathname))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Blob{}, fmt.Errorf("failed to create blob dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return Blob{}, fmt.Errorf("failed to write blob: %w", err)
	}

	return Blob{
		URL:         PublicURL(s.baseURL, pathname),
		Pathname:    pathname,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (s *LocalStore) Get(_ context.Context, pathname string) (io.ReadCloser, int64, error) {
	if !validPathname(pathname) {
		return nil, 0, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(pathname)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (s *LocalStore) Delete(_ context.Context, pathname string) error {
	if !validPathname(pathname) {
		return ErrNotFound
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(pathname)))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
