package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	// MinAgentIDLength is the shortest accepted agent id
	MinAgentIDLength = 3
	// MaxAgentIDLength is the longest accepted agent id or username
	MaxAgentIDLength = 100
	// MinPasswordLength is the shortest password accepted at registration
	MinPasswordLength = 6
	// MaxPasswordLength is the longest password bcrypt will accept
	MaxPasswordLength = 72
)

// FieldError describes a single invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when caller input is malformed or out of range
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field error
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Merge appends the field errors of other
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Fields = append(e.Fields, other.Fields...)
}

// HasErrors reports whether any field error was recorded
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Error implements error
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// ValidateLogin checks the shape of login input. Length minimums are not enforced
// here so that any wrong password yields the same outcome as an unknown user.
func ValidateLogin(username, password string) error {
	verr := &ValidationError{}
	switch {
	case strings.TrimSpace(username) == "":
		verr.Add("username", "is required")
	case utf8.RuneCountInString(username) > MaxAgentIDLength:
		verr.Add("username", fmt.Sprintf("must be at most %d characters", MaxAgentIDLength))
	}
	if password == "" {
		verr.Add("password", "is required")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// ValidateRegisterRequest checks registration input
func ValidateRegisterRequest(req RegisterRequest) error {
	verr := &ValidationError{}

	idLen := utf8.RuneCountInString(req.AgentID)
	switch {
	case strings.TrimSpace(req.AgentID) == "":
		verr.Add("agent_id", "is required")
	case idLen < MinAgentIDLength || idLen > MaxAgentIDLength:
		verr.Add("agent_id", fmt.Sprintf("must be between %d and %d characters", MinAgentIDLength, MaxAgentIDLength))
	case strings.HasPrefix(req.AgentID, GuestIDPrefix):
		verr.Add("agent_id", fmt.Sprintf("must not start with %q", GuestIDPrefix))
	}

	if err := validateEmail(req.Email); err != nil {
		verr.Add("email", err.Error())
	}

	pwLen := len(req.Password)
	switch {
	case pwLen < MinPasswordLength:
		verr.Add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	case pwLen > MaxPasswordLength:
		verr.Add("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordLength))
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("must be a valid email address")
	}
	return nil
}
