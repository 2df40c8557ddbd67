package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/versions"
)

// ImportOptions controls how existing rows are treated
type ImportOptions struct {
	// Force replaces existing rows regardless of version
	Force bool
	// DryRun reports what would change without writing
	DryRun bool
}

// ImportResult counts the outcome per entity
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Importer writes catalog entities into a store, keeping the newer version of each row
type Importer struct {
	writer service.EntityWriter
}

// NewImporter creates an importer over writer
func NewImporter(writer service.EntityWriter) *Importer {
	return &Importer{writer: writer}
}

// Import upserts entities. An existing row is replaced only when the incoming
// version is newer or opts.Force is set. The first store error aborts the import.
func (i *Importer) Import(ctx context.Context, entities []service.Entity, opts ImportOptions) (ImportResult, error) {
	var result ImportResult

	for idx := range entities {
		e := &entities[idx]

		existing, err := i.writer.GetEntity(ctx, e.UID)
		switch {
		case errors.Is(err, service.ErrEntityNotFound):
			if err := i.write(ctx, e, opts); err != nil {
				return result, err
			}
			result.Created++
			slog.DebugContext(ctx, "Entity created", "uid", e.UID, "version", e.Version, "dry_run", opts.DryRun)
		case err != nil:
			return result, fmt.Errorf("failed to look up entity %s: %w", e.UID, err)
		case opts.Force || versions.IsNewerVersion(e.Version, existing.Version):
			// keep the original creation time of the row
			e.CreatedAt = existing.CreatedAt
			if err := i.write(ctx, e, opts); err != nil {
				return result, err
			}
			result.Updated++
			slog.DebugContext(ctx, "Entity updated",
				"uid", e.UID,
				"from", existing.Version,
				"to", e.Version,
				"dry_run", opts.DryRun)
		default:
			result.Skipped++
			slog.DebugContext(ctx, "Entity skipped, stored version is not older",
				"uid", e.UID,
				"stored", existing.Version,
				"incoming", e.Version)
		}
	}

	return result, nil
}

func (i *Importer) write(ctx context.Context, e *service.Entity, opts ImportOptions) error {
	if opts.DryRun {
		return nil
	}
	if err := i.writer.UpsertEntity(ctx, e); err != nil {
		return fmt.Errorf("failed to write entity %s: %w", e.UID, err)
	}
	return nil
}
