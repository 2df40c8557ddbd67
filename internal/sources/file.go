package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/matrixhub/catalog-server/internal/service"
)

// FileLoader reads a catalog document from the local filesystem
type FileLoader struct {
	path      string
	format    string
	validator *Validator
}

// NewFileLoader creates a loader for path. The format follows the file extension.
func NewFileLoader(path string) (*FileLoader, error) {
	if path == "" {
		return nil, errors.New("catalog file path cannot be empty")
	}
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	return &FileLoader{path: path, format: DetectFormat(path), validator: validator}, nil
}

// Source describes the loader for logging
func (l *FileLoader) Source() string {
	return "file:" + l.path
}

// Load reads, validates and decodes the catalog file
func (l *FileLoader) Load(ctx context.Context) ([]service.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	//nolint:gosec // path comes from operator configuration
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("catalog file not found: %s", l.path)
		}
		return nil, fmt.Errorf("failed to read catalog file %s: %w", l.path, err)
	}

	entities, err := l.validator.Parse(data, l.format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}

	sum := sha256.Sum256(data)
	slog.InfoContext(ctx, "Loaded catalog file",
		"path", l.path,
		"format", l.format,
		"entities", len(entities),
		"sha256", hex.EncodeToString(sum[:]))
	return entities, nil
}
