package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultPageSize is the number of entities returned when no limit is given
	DefaultPageSize = 20
	// MaxPageSize is the largest accepted limit
	MaxPageSize = 100
	// MaxQueryLength is the longest accepted free-text query
	MaxQueryLength = 200
	// MaxProtocolLength is the longest accepted protocol filter
	MaxProtocolLength = 50
)

// ListOption is a function that sets an option for the ListEntities operation
type ListOption func(*ListEntitiesOptions) error

// ListEntitiesOptions is the options for the ListEntities operation.
// Empty strings mean "no filter".
type ListEntitiesOptions struct {
	Query    string
	Type     EntityType
	Protocol string
	Limit    int
	Offset   int
}

// NewListEntitiesOptions applies opts on top of the defaults. Every invalid option is
// reported, so the returned error is a *ValidationError listing all offending fields.
func NewListEntitiesOptions(opts ...ListOption) (*ListEntitiesOptions, error) {
	o := &ListEntitiesOptions{
		Limit: DefaultPageSize,
	}

	verr := &ValidationError{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			var fieldErr *ValidationError
			if errors.As(err, &fieldErr) {
				verr.Merge(fieldErr)
				continue
			}
			return nil, err
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}
	return o, nil
}

// WithQuery sets the free-text filter matched against name and summary
func WithQuery(q string) ListOption {
	return func(o *ListEntitiesOptions) error {
		n := utf8.RuneCountInString(q)
		if n < 1 || n > MaxQueryLength {
			return NewValidationError("q", fmt.Sprintf("must be between 1 and %d characters", MaxQueryLength))
		}
		o.Query = q
		return nil
	}
}

// WithType sets the entity type filter
func WithType(t string) ListOption {
	return func(o *ListEntitiesOptions) error {
		et := EntityType(t)
		if !et.IsValid() {
			valid := make([]string, len(EntityTypes))
			for i, v := range EntityTypes {
				valid[i] = string(v)
			}
			return NewValidationError("type", "must be one of "+strings.Join(valid, ", "))
		}
		o.Type = et
		return nil
	}
}

// WithProtocol sets the relaxed protocol filter
func WithProtocol(protocol string) ListOption {
	return func(o *ListEntitiesOptions) error {
		n := utf8.RuneCountInString(protocol)
		if n < 1 || n > MaxProtocolLength {
			return NewValidationError("protocol", fmt.Sprintf("must be between 1 and %d characters", MaxProtocolLength))
		}
		o.Protocol = protocol
		return nil
	}
}

// WithLimit sets the page size
func WithLimit(limit int) ListOption {
	return func(o *ListEntitiesOptions) error {
		if limit < 1 || limit > MaxPageSize {
			return NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
		}
		o.Limit = limit
		return nil
	}
}

// WithOffset sets the number of rows skipped after ordering
func WithOffset(offset int) ListOption {
	return func(o *ListEntitiesOptions) error {
		if offset < 0 {
			return NewValidationError("offset", "must be greater than or equal to 0")
		}
		o.Offset = offset
		return nil
	}
}
