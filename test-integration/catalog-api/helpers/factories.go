package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
	"gopkg.in/yaml.v3"
)

// CatalogEntity is one entry of a catalog document
type CatalogEntity struct {
	UID          string         `yaml:"uid"`
	Type         string         `yaml:"type"`
	Name         string         `yaml:"name"`
	Version      string         `yaml:"version"`
	Summary      string         `yaml:"summary,omitempty"`
	Capabilities []string       `yaml:"capabilities,omitempty"`
	Protocols    []string       `yaml:"protocols,omitempty"`
	Manifests    map[string]any `yaml:"manifests,omitempty"`
	QualityScore float64        `yaml:"quality_score"`
	CreatedAt    string         `yaml:"created_at,omitempty"`
}

// CatalogDocument is the top-level catalog document
type CatalogDocument struct {
	Version  string          `yaml:"version"`
	Entities []CatalogEntity `yaml:"entities"`
}

// CreateTestEntities returns a small catalog covering every entity type
func CreateTestEntities() []CatalogEntity {
	return []CatalogEntity{
		{
			UID: "agent-autogpt-001", Type: "agent", Name: "AutoGPT Agent", Version: "4.5.0",
			Summary:   "Autonomous AI agent for complex task automation",
			Protocols: []string{"a2a@1.0", "mcp@0.1"}, QualityScore: 95.5,
			CreatedAt: "2024-12-01T09:00:00Z",
		},
		{
			UID: "agent-supportbot-001", Type: "agent", Name: "SupportBot 3000", Version: "3.2.1",
			Summary:   "24/7 customer support automation agent",
			Protocols: []string{"a2a@1.0"}, QualityScore: 87.5,
			CreatedAt: "2024-10-17T09:00:00Z",
		},
		{
			UID: "tool-webscraper-001", Type: "tool", Name: "WebScraper Plus", Version: "1.8.2",
			Summary:   "Intelligent web scraping and data extraction tool",
			Protocols: []string{"mcp@0.1"}, QualityScore: 82.3,
			Manifests: map[string]any{"mcp@0.1": map[string]any{"transport": "stdio"}},
			CreatedAt: "2024-10-02T09:00:00Z",
		},
		{
			UID: "mcp-database-001", Type: "mcp_server", Name: "PostgreSQL MCP Server", Version: "1.0.5",
			Summary:   "MCP server for PostgreSQL database operations",
			Protocols: []string{"mcp@0.1"}, QualityScore: 90,
			CreatedAt: "2024-11-16T09:00:00Z",
		},
	}
}

// MarshalCatalog encodes entities as a YAML catalog document
func MarshalCatalog(entities []CatalogEntity) []byte {
	data, err := yaml.Marshal(CatalogDocument{Version: "1", Entities: entities})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return data
}

// WriteCatalogYAML writes entities to dir/catalog.yaml and returns the path
func WriteCatalogYAML(dir string, entities []CatalogEntity) string {
	path := filepath.Join(dir, "catalog.yaml")
	gomega.Expect(os.WriteFile(path, MarshalCatalog(entities), 0o600)).To(gomega.Succeed())
	return path
}

// ConfigOptions selects the storage and auth settings of a test configuration
type ConfigOptions struct {
	StorageType     string
	CatalogPath     string
	CatalogURL      string
	RefreshInterval string

	// SigningKeyFile switches to jwt tokens; Enforce additionally requires them
	SigningKeyFile string
	Enforce        bool
	PublicPaths    []string
}

// WriteConfigYAML writes a configuration file for opts to dir/config.yaml
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	var b strings.Builder
	b.WriteString("app:\n  name: Integration Catalog\n  environment: test\n")
	fmt.Fprintf(&b, "storage:\n  type: %s\n", opts.StorageType)
	switch opts.StorageType {
	case "file":
		fmt.Fprintf(&b, "  file:\n    path: %s\n", opts.CatalogPath)
	case "url":
		fmt.Fprintf(&b, "  url:\n    url: %s\n    timeout: 2s\n", opts.CatalogURL)
	}
	if opts.RefreshInterval != "" {
		fmt.Fprintf(&b, "  refreshInterval: %s\n", opts.RefreshInterval)
	}

	b.WriteString("auth:\n  bcryptCost: 4\n")
	if opts.SigningKeyFile != "" {
		fmt.Fprintf(&b, "  tokenMode: jwt\n  jwt:\n    signingKeyFile: %s\n", opts.SigningKeyFile)
		if opts.Enforce {
			b.WriteString("  enforce: true\n")
		}
		if len(opts.PublicPaths) > 0 {
			b.WriteString("  publicPaths:\n")
			for _, p := range opts.PublicPaths {
				fmt.Fprintf(&b, "    - %s\n", p)
			}
		}
	}

	path := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(path, []byte(b.String()), 0o600)).To(gomega.Succeed())
	return path
}

// WriteSigningKey writes a 32-byte HMAC key to dir/signing.key
func WriteSigningKey(dir string) string {
	path := filepath.Join(dir, "signing.key")
	gomega.Expect(os.WriteFile(path, []byte(strings.Repeat("k", 32)), 0o600)).To(gomega.Succeed())
	return path
}
