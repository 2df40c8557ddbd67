package sources

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/matrixhub/catalog-server/internal/service"
)

const catalogSchemaURL = "https://matrixhub.dev/schemas/catalog.schema.json"

//go:embed schema/catalog.schema.json
var catalogSchema []byte

// ErrEmptyDocument is returned for a catalog file with no content
var ErrEmptyDocument = errors.New("catalog document is empty")

// Validator checks catalog documents against the embedded schema and decodes them
type Validator struct {
	schema *jsonschema.Schema
	now    func() time.Time
}

// NewValidator compiles the embedded catalog schema
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(catalogSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(catalogSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to register catalog schema: %w", err)
	}
	schema, err := c.Compile(catalogSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile catalog schema: %w", err)
	}

	return &Validator{schema: schema, now: time.Now}, nil
}

// Parse validates data in the given format and returns its entities in file order
func (v *Validator) Parse(data []byte, format string) ([]service.Entity, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}

	raw, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid %s document: %w", format, err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("catalog does not match schema: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	now := v.now().UTC()
	seen := make(map[string]struct{}, len(doc.Entities))
	entities := make([]service.Entity, 0, len(doc.Entities))
	for i := range doc.Entities {
		d := &doc.Entities[i]
		if _, dup := seen[d.UID]; dup {
			return nil, fmt.Errorf("duplicate entity uid %q", d.UID)
		}
		seen[d.UID] = struct{}{}

		if err := d.check(); err != nil {
			return nil, err
		}
		entities = append(entities, d.ToEntity(now))
	}
	return entities, nil
}

// toJSON normalizes a YAML or JSON document to JSON bytes
func toJSON(data []byte, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid yaml document: %w", err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("yaml document cannot be represented as json: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
