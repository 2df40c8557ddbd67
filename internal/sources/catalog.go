// Package sources reads entity catalogs from YAML or JSON documents.
//
// A catalog document is validated against an embedded JSON Schema before it is
// decoded, then checked for duplicate uids and inconsistent timestamps. The
// resulting entities either back the in-memory store (FileLoader) or are written
// to the database by the seed command (Importer).
package sources

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/matrixhub/catalog-server/internal/service"
)

const (
	// FormatYAML is a YAML catalog document
	FormatYAML = "yaml"
	// FormatJSON is a JSON catalog document
	FormatJSON = "json"
)

// DetectFormat picks the document format from a file extension. Unknown
// extensions are treated as YAML, which also accepts JSON.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Document is the catalog file layout
type Document struct {
	Version  string           `json:"version,omitempty"`
	Entities []EntityDocument `json:"entities"`
}

// EntityDocument is one catalog entry as written in a catalog file
type EntityDocument struct {
	UID           string         `json:"uid"`
	Type          string         `json:"type"`
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	Summary       string         `json:"summary,omitempty"`
	Description   string         `json:"description,omitempty"`
	Capabilities  []string       `json:"capabilities,omitempty"`
	Frameworks    []string       `json:"frameworks,omitempty"`
	Providers     []string       `json:"providers,omitempty"`
	Protocols     []string       `json:"protocols,omitempty"`
	Manifests     map[string]any `json:"manifests,omitempty"`
	License       string         `json:"license,omitempty"`
	Homepage      string         `json:"homepage,omitempty"`
	SourceURL     string         `json:"source_url,omitempty"`
	ReadmeBlobRef string         `json:"readme_blob_ref,omitempty"`
	QualityScore  float64        `json:"quality_score,omitempty"`
	ReleaseTS     *time.Time     `json:"release_ts,omitempty"`
	CreatedAt     *time.Time     `json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
}

// ToEntity converts the document entry. Missing timestamps default to now.
func (d *EntityDocument) ToEntity(now time.Time) service.Entity {
	createdAt := now
	if d.CreatedAt != nil {
		createdAt = d.CreatedAt.UTC()
	}
	updatedAt := createdAt
	if d.UpdatedAt != nil {
		updatedAt = d.UpdatedAt.UTC()
	}

	return service.Entity{
		UID:           d.UID,
		Type:          service.EntityType(d.Type),
		Name:          d.Name,
		Version:       d.Version,
		Summary:       d.Summary,
		Description:   d.Description,
		Capabilities:  orEmpty(d.Capabilities),
		Frameworks:    orEmpty(d.Frameworks),
		Providers:     orEmpty(d.Providers),
		Protocols:     orEmpty(d.Protocols),
		Manifests:     d.Manifests,
		License:       optional(d.License),
		Homepage:      optional(d.Homepage),
		SourceURL:     optional(d.SourceURL),
		ReadmeBlobRef: optional(d.ReadmeBlobRef),
		QualityScore:  d.QualityScore,
		ReleaseTS:     d.ReleaseTS,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

func (d *EntityDocument) check() error {
	if d.CreatedAt != nil && d.UpdatedAt != nil && d.UpdatedAt.Before(*d.CreatedAt) {
		return fmt.Errorf("entity %s: updated_at is before created_at", d.UID)
	}
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
