package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toolradar/toolradar/internal/radar"
)

// LocalConfig captures the parameters for the filesystem archiver.
type LocalConfig struct {
	// BaseDir is the root directory payloads are written under.
	BaseDir string `mapstructure:"base_dir"`
}

// LocalArchiver writes payloads to the local filesystem. Useful for
// development runs.
type LocalArchiver struct {
	baseDir string
}

var _ radar.Archiver = (*LocalArchiver)(nil)

// NewLocal creates a filesystem-backed archiver, creating the base
// directory if needed.
func NewLocal(cfg LocalConfig) (*LocalArchiver, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &LocalArchiver{baseDir: cfg.BaseDir}, nil
}

// Put writes the payload to a file and returns its file:// URI.
func (a *LocalArchiver) Put(_ context.Context, path, _ string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("path escapes base directory")
	}

	full := filepath.Join(a.baseDir, clean)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return "file://" + full, nil
}

// NoopArchiver discards payloads. Used when archival is disabled.
type NoopArchiver struct{}

var _ radar.Archiver = NoopArchiver{}

// Put discards the payload and returns an empty URI.
func (NoopArchiver) Put(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
