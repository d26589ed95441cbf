// Package gcs keeps a copy of uploaded source files in a Google Cloud
// Storage bucket, grouped under the guide they produced.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const sourcesPrefix = "sources/"

// Archive stores sources at sources/<guide id>/<file name>.
type Archive struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewArchive opens a storage client for bucket. STORAGE_EMULATOR_HOST is
// honoured by the client library.
func NewArchive(ctx context.Context, bucket string, logger *slog.Logger, opts ...option.ClientOption) (*Archive, error) {
	if bucket == "" {
		return nil, errors.New("archive bucket cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Archive{
		client: client,
		bucket: bucket,
		logger: logger.With("component", "source_archive", "bucket", bucket),
	}, nil
}

// Put uploads data as the archived source of guideID.
func (a *Archive) Put(ctx context.Context, guideID, filename string, data []byte) error {
	key := ObjectKey(guideID, filename)

	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = mimetype.Detect(data).String()
	w.Metadata = map[string]string{"guide_id": guideID}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	logger.FromContextOrDefault(ctx, a.logger).Debug("source archived",
		"guide_id", guideID,
		"object", key,
		"size", len(data))
	return nil
}

// Delete removes every archived object of guideID.
func (a *Archive) Delete(ctx context.Context, guideID string) error {
	bucket := a.client.Bucket(a.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: guidePrefix(guideID)})

	var errs []error
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to list archived sources: %w", err)
		}
		if err := bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			logger.FromContextOrDefault(ctx, a.logger).Warn("failed to delete archived source",
				"object", attrs.Name,
				"error", redact.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the storage client.
func (a *Archive) Close() error {
	return a.client.Close()
}

// ObjectKey returns the object name for a guide's source file. Directory
// parts of filename are dropped.
func ObjectKey(guideID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "source"
	}
	return guidePrefix(guideID) + name
}

func guidePrefix(guideID string) string {
	return sourcesPrefix + guideID + "/"
}
