// Package session implements service.AuthService: password login, self-registration,
// guest identities and profile lookups over a credential store.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/matrixhub/catalog-server/internal/auth"
	"github.com/matrixhub/catalog-server/internal/otel"
	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/telemetry"
)

// DefaultQueryTimeout bounds every credential store call when no timeout is configured
const DefaultQueryTimeout = 5 * time.Second

// guestIDBytes is the number of random bytes in a guest id suffix
const guestIDBytes = 4

// PasswordHasher hashes and verifies secrets. *auth.BcryptHasher satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
	CompareDummy(password string)
}

type options struct {
	store        service.CredentialStore
	issuer       auth.TokenIssuer
	hasher       PasswordHasher
	tracer       trace.Tracer
	metrics      *telemetry.AuthMetrics
	queryTimeout time.Duration
	random       io.Reader
	now          func() time.Time
}

// Option is a functional option for the session service
type Option func(*options) error

// WithCredentialStore sets the credential store. Required.
func WithCredentialStore(store service.CredentialStore) Option {
	return func(o *options) error {
		if store == nil {
			return errors.New("credential store is required")
		}
		o.store = store
		return nil
	}
}

// WithTokenIssuer sets the token issuer. Defaults to opaque random tokens.
func WithTokenIssuer(issuer auth.TokenIssuer) Option {
	return func(o *options) error {
		if issuer == nil {
			return errors.New("token issuer must not be nil")
		}
		o.issuer = issuer
		return nil
	}
}

// WithPasswordHasher sets the password hasher. Defaults to bcrypt at the default cost.
func WithPasswordHasher(hasher PasswordHasher) Option {
	return func(o *options) error {
		if hasher == nil {
			return errors.New("password hasher must not be nil")
		}
		o.hasher = hasher
		return nil
	}
}

// WithTracer enables spans for every operation
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithMetrics records attempt outcomes
func WithMetrics(m *telemetry.AuthMetrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithQueryTimeout bounds each credential store call
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("query timeout must be positive, got %s", d)
		}
		o.queryTimeout = d
		return nil
	}
}

func withRandom(r io.Reader) Option {
	return func(o *options) error {
		o.random = r
		return nil
	}
}

func withClock(now func() time.Time) Option {
	return func(o *options) error {
		o.now = now
		return nil
	}
}

type sessionService struct {
	store        service.CredentialStore
	issuer       auth.TokenIssuer
	hasher       PasswordHasher
	tracer       trace.Tracer
	metrics      *telemetry.AuthMetrics
	queryTimeout time.Duration
	random       io.Reader
	now          func() time.Time
}

var _ service.AuthService = (*sessionService)(nil)

// New creates a session service
func New(opts ...Option) (service.AuthService, error) {
	o := &options{
		queryTimeout: DefaultQueryTimeout,
		random:       rand.Reader,
		now:          time.Now,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.store == nil {
		return nil, errors.New("credential store is required")
	}
	if o.issuer == nil {
		o.issuer = auth.NewOpaqueIssuer()
	}
	if o.hasher == nil {
		hasher, err := auth.NewBcryptHasher(0)
		if err != nil {
			return nil, err
		}
		o.hasher = hasher
	}

	return &sessionService{
		store:        o.store,
		issuer:       o.issuer,
		hasher:       o.hasher,
		tracer:       o.tracer,
		metrics:      o.metrics,
		queryTimeout: o.queryTimeout,
		random:       o.random,
		now:          o.now,
	}, nil
}

func (s *sessionService) startSpan(ctx context.Context, name, operation string) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, s.tracer, name,
		trace.WithAttributes(otel.AttrAuthOperation.String(operation)))
}

// Login verifies the username and password. Unknown users and wrong passwords
// both return ErrInvalidCredentials after a full hash comparison.
func (s *sessionService) Login(ctx context.Context, username, password string) (*service.Session, error) {
	ctx, span := s.startSpan(ctx, "sessionService.Login", telemetry.AuthOperationLogin)
	defer span.End()

	if err := service.ValidateLogin(username, password); err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationLogin, telemetry.AuthOutcomeInvalid)
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	cred, err := s.store.Get(qctx, username)
	cancel()

	switch {
	case errors.Is(err, service.ErrUserNotFound):
		s.hasher.CompareDummy(password)
		return nil, s.rejectLogin(ctx, username)
	case err != nil:
		return nil, s.storageFault(ctx, span, telemetry.AuthOperationLogin, err)
	}

	if err := s.hasher.Compare(cred.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			slog.ErrorContext(ctx, "Stored password hash is unusable",
				"error", err,
				"user_id", cred.ID,
				"request_id", middleware.GetReqID(ctx))
		}
		return nil, s.rejectLogin(ctx, username)
	}

	sess, err := s.issue(ctx, auth.Subject{ID: cred.ID, Name: cred.Name, Role: cred.Role}, cred.AvatarURL)
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationLogin, telemetry.AuthOutcomeError)
		return nil, err
	}

	s.metrics.RecordAttempt(ctx, telemetry.AuthOperationLogin, telemetry.AuthOutcomeSuccess)
	slog.InfoContext(ctx, "User logged in", "user_id", cred.ID, "request_id", middleware.GetReqID(ctx))
	return sess, nil
}

func (s *sessionService) rejectLogin(ctx context.Context, username string) error {
	s.metrics.RecordAttempt(ctx, telemetry.AuthOperationLogin, telemetry.AuthOutcomeRejected)
	slog.InfoContext(ctx, "Login rejected", "username", username, "request_id", middleware.GetReqID(ctx))
	return service.ErrInvalidCredentials
}

// Register stores a new credential record and issues a session for it
func (s *sessionService) Register(ctx context.Context, req service.RegisterRequest) (*service.Session, error) {
	ctx, span := s.startSpan(ctx, "sessionService.Register", telemetry.AuthOperationRegister)
	defer span.End()

	if err := service.ValidateRegisterRequest(req); err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationRegister, telemetry.AuthOutcomeInvalid)
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationRegister, telemetry.AuthOutcomeError)
		return nil, fmt.Errorf("register: %w", err)
	}

	cred := &service.Credential{
		ID:           req.AgentID,
		PasswordHash: hash,
		Name:         req.AgentID,
		Role:         service.DefaultAgentRole,
		Email:        req.Email,
		AvatarURL:    service.AvatarURL(req.AgentID),
		CreatedAt:    s.now().UTC(),
	}

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	inserted, err := s.store.InsertIfAbsent(qctx, cred)
	cancel()
	if err != nil {
		return nil, s.storageFault(ctx, span, telemetry.AuthOperationRegister, err)
	}
	if !inserted {
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationRegister, telemetry.AuthOutcomeConflict)
		slog.InfoContext(ctx, "Agent id already registered",
			"agent_id", req.AgentID,
			"request_id", middleware.GetReqID(ctx))
		return nil, fmt.Errorf("register %s: %w", req.AgentID, service.ErrAgentIDTaken)
	}

	sess, err := s.issue(ctx, auth.Subject{ID: cred.ID, Name: cred.Name, Role: cred.Role}, cred.AvatarURL)
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationRegister, telemetry.AuthOutcomeError)
		return nil, err
	}

	s.metrics.RecordAttempt(ctx, telemetry.AuthOperationRegister, telemetry.AuthOutcomeSuccess)
	slog.InfoContext(ctx, "Agent registered", "agent_id", cred.ID, "request_id", middleware.GetReqID(ctx))
	return sess, nil
}

// Guest issues a session for a fresh guest identity. Nothing is persisted.
func (s *sessionService) Guest(ctx context.Context) (*service.Session, error) {
	ctx, span := s.startSpan(ctx, "sessionService.Guest", telemetry.AuthOperationGuest)
	defer span.End()
	span.SetAttributes(otel.AttrAuthGuest.Bool(true))

	id, err := s.newGuestID()
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationGuest, telemetry.AuthOutcomeError)
		return nil, err
	}

	subject := auth.Subject{ID: id, Name: service.GuestName, Role: service.GuestRole, Guest: true}
	sess, err := s.issue(ctx, subject, service.AvatarURL(service.GuestAvatarSeed))
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationGuest, telemetry.AuthOutcomeError)
		return nil, err
	}

	s.metrics.RecordAttempt(ctx, telemetry.AuthOperationGuest, telemetry.AuthOutcomeSuccess)
	slog.DebugContext(ctx, "Guest session issued", "user_id", id, "request_id", middleware.GetReqID(ctx))
	return sess, nil
}

func (s *sessionService) newGuestID() (string, error) {
	buf := make([]byte, guestIDBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("failed to generate guest id: %w", err)
	}
	return service.GuestIDPrefix + hex.EncodeToString(buf), nil
}

// Profile returns the public profile for userID. Guest ids get a synthetic profile.
func (s *sessionService) Profile(ctx context.Context, userID string) (*service.Profile, error) {
	ctx, span := s.startSpan(ctx, "sessionService.Profile", telemetry.AuthOperationProfile)
	defer span.End()

	if userID == "" {
		err := service.NewValidationError("user_id", "is required")
		otel.RecordError(span, err)
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationProfile, telemetry.AuthOutcomeInvalid)
		return nil, err
	}

	if service.IsGuestID(userID) {
		span.SetAttributes(otel.AttrAuthGuest.Bool(true))
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationProfile, telemetry.AuthOutcomeSuccess)
		return &service.Profile{
			ID:        userID,
			Name:      service.GuestName,
			Role:      service.GuestRole,
			AvatarURL: service.AvatarURL(service.GuestAvatarSeed),
		}, nil
	}

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	cred, err := s.store.Get(qctx, userID)
	cancel()

	switch {
	case errors.Is(err, service.ErrUserNotFound):
		s.metrics.RecordAttempt(ctx, telemetry.AuthOperationProfile, telemetry.AuthOutcomeRejected)
		slog.DebugContext(ctx, "Profile not found", "user_id", userID, "request_id", middleware.GetReqID(ctx))
		return nil, fmt.Errorf("profile %s: %w", userID, service.ErrUserNotFound)
	case err != nil:
		return nil, s.storageFault(ctx, span, telemetry.AuthOperationProfile, err)
	}

	s.metrics.RecordAttempt(ctx, telemetry.AuthOperationProfile, telemetry.AuthOutcomeSuccess)
	return toProfile(cred), nil
}

// Logout acknowledges the request. Tokens are client-held and never revoked.
func (s *sessionService) Logout(ctx context.Context) service.Acknowledgement {
	s.metrics.RecordAttempt(ctx, telemetry.AuthOperationLogout, telemetry.AuthOutcomeSuccess)
	return service.LogoutAcknowledgement()
}

func (s *sessionService) issue(ctx context.Context, subject auth.Subject, avatarURL string) (*service.Session, error) {
	token, err := s.issuer.IssueToken(ctx, subject)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to issue token",
			"error", err,
			"user_id", subject.ID,
			"request_id", middleware.GetReqID(ctx))
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &service.Session{
		AccessToken: token,
		TokenType:   service.TokenTypeBearer,
		UserID:      subject.ID,
		Name:        subject.Name,
		Role:        subject.Role,
		IsGuest:     subject.Guest,
		AvatarURL:   avatarURL,
	}, nil
}

func (s *sessionService) storageFault(ctx context.Context, span trace.Span, operation string, err error) error {
	otel.RecordError(span, err)
	s.metrics.RecordAttempt(ctx, operation, telemetry.AuthOutcomeError)
	slog.ErrorContext(ctx, "Credential store call failed",
		"error", err,
		"operation", operation,
		"request_id", middleware.GetReqID(ctx))
	return fmt.Errorf("%s: %w", operation, service.ErrStorageUnavailable)
}

func toProfile(cred *service.Credential) *service.Profile {
	p := &service.Profile{
		ID:        cred.ID,
		Name:      cred.Name,
		Role:      cred.Role,
		AvatarURL: cred.AvatarURL,
	}
	if cred.Email != "" {
		email := cred.Email
		p.Email = &email
	}
	if !cred.CreatedAt.IsZero() {
		createdAt := cred.CreatedAt
		p.CreatedAt = &createdAt
	}
	return p
}
