// Package blobstore keeps uploaded dataset files, either on local disk or
// in a GCS bucket (real or emulated).
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/yungbote/mlcompare/internal/platform/logger"
)

var ErrNotFound = errors.New("blobstore: object not found")

type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("service", "BlobStore")
	switch cfg.Mode {
	case ModeLocal:
		return newLocalStore(log, cfg.LocalDir)
	default:
		return newGCSStore(ctx, log, cfg)
	}
}

// DatasetKey is where an uploaded dataset file lives.
func DatasetKey(datasetID, fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "dataset.csv"
	}
	return "datasets/" + datasetID + "/" + name
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("blobstore: empty key")
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("blobstore: invalid key %q", key)
	}
	return clean, nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".csv"):
		return "text/csv"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}
