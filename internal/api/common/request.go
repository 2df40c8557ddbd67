package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matrixhub/catalog-server/internal/service"
)

// MaxBodyBytes is the largest request body accepted
const MaxBodyBytes = 1 << 20

// DecodeJSONBody decodes the request body into dst. An empty body is accepted
// when allowEmpty is set. Malformed or oversized bodies yield a *service.ValidationError.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			if allowEmpty {
				return nil
			}
			return service.NewValidationError("body", "is required")
		case errors.As(err, &maxErr):
			return service.NewValidationError("body", fmt.Sprintf("must not exceed %d bytes", MaxBodyBytes))
		case errors.As(err, &typeErr):
			return service.NewValidationError(typeErr.Field, "has the wrong type")
		default:
			return service.NewValidationError("body", "must be valid JSON")
		}
	}
	if dec.More() {
		return service.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}

// URLParam extracts a chi URL parameter. chi matches against RawPath when the
// request has one, so only then is the value still escaped and decoded here.
// Empty values and values containing whitespace yield a *service.ValidationError
// naming field.
func URLParam(r *http.Request, name, field string) (string, error) {
	decoded := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		var err error
		decoded, err = url.PathUnescape(decoded)
		if err != nil {
			return "", service.NewValidationError(field, "has invalid URL encoding")
		}
	}
	if strings.TrimSpace(decoded) == "" {
		return "", service.NewValidationError(field, "is required")
	}
	if strings.ContainsAny(decoded, " \t\n\r") {
		return "", service.NewValidationError(field, "must not contain whitespace")
	}
	return decoded, nil
}
