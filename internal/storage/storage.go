// Package storage keeps uploaded memo files. Blobs are addressed by a
// pathname of the form memos/<id>/<filename> and served back under
// <base>/api/files/<pathname>.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"memodesk-backend/internal/config"
)

var ErrNotFound = errors.New("blob not found")

const routePrefix = "/api/files/"

type Blob struct {
	URL         string
	Pathname    string
	ContentType string
	Size        int64
}

type Store interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (Blob, error)
	Get(ctx context.Context, pathname string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, pathname string) error
}

// New picks the backend named by cfg.StorageType.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StorageType {
	case "minio":
		return NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket, cfg.PublicBaseURL)
	case "local", "":
		return NewLocalStore(cfg.StoragePath, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.StorageType)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func newPathname(filename string) string {
	name := unsafeChars.ReplaceAllString(path.Base(strings.ReplaceAll(filename, "\\", "/")), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "upload"
	}
	return "memos/" + uuid.New().String() + "/" + name
}

// PublicURL returns the download URL of pathname.
func PublicURL(baseURL, pathname string) string {
	return strings.TrimRight(baseURL, "/") + routePrefix + pathname
}

func validPathname(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") {
		return false
	}
	return path.Clean(p) == p && !strings.HasPrefix(p, "..") && strings.HasPrefix(p, "memos/")
}
