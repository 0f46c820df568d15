// Package archive stores raw connector payloads for debugging and
// replay. Implementations of radar.Archiver cover GCS, the local
// filesystem and a noop for runs that do not archive.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/toolradar/toolradar/internal/radar"
)

// GCSConfig captures the parameters required to archive into GCS.
type GCSConfig struct {
	Bucket string
	// Prefix is prepended to every archived path.
	Prefix string
}

// GCSArchiver writes payloads to a Google Cloud Storage bucket.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ radar.Archiver = (*GCSArchiver)(nil)

// NewGCS creates a GCS-backed archiver.
func NewGCS(client *storage.Client, cfg GCSConfig) (*GCSArchiver, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSArchiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put uploads the payload and returns its gs:// URI.
func (a *GCSArchiver) Put(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	if a.prefix != "" {
		path = a.prefix + "/" + strings.TrimPrefix(path, "/")
	}

	writer := a.client.Bucket(a.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, path), nil
}
