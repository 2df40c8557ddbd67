// Package sessions provides the demo authentication endpoints.
package sessions

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matrixhub/catalog-server/internal/api/common"
	"github.com/matrixhub/catalog-server/internal/service"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GuestRequest is the optional body of POST /auth/guest. SessionID is accepted and ignored.
type GuestRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// RouterOption configures the auth router
type RouterOption func(*routerConfig)

type routerConfig struct {
	credentialMiddlewares []func(http.Handler) http.Handler
}

// WithCredentialMiddleware wraps the endpoints that accept a password, login and register
func WithCredentialMiddleware(mw ...func(http.Handler) http.Handler) RouterOption {
	return func(cfg *routerConfig) {
		cfg.credentialMiddlewares = append(cfg.credentialMiddlewares, mw...)
	}
}

// Routes handles HTTP requests for the auth endpoints.
type Routes struct {
	service service.AuthService
}

// NewRoutes creates a new Routes instance with the given service.
func NewRoutes(svc service.AuthService) *Routes {
	return &Routes{service: svc}
}

// Router creates the router for /auth
func Router(svc service.AuthService, opts ...RouterOption) http.Handler {
	cfg := &routerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(cfg.credentialMiddlewares...)
		r.Post("/login", routes.login)
		r.Post("/register", routes.register)
	})
	r.Post("/guest", routes.guest)
	r.Get("/profile/{userID}", routes.profile)
	r.Post("/logout", routes.logout)
	return r
}

// login handles POST /api/auth/login
func (routes *Routes) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := common.DecodeJSONBody(w, r, &req, false); err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	sess, err := routes.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, sess, http.StatusOK)
}

// register handles POST /api/auth/register
func (routes *Routes) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := common.DecodeJSONBody(w, r, &req, false); err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	sess, err := routes.service.Register(r.Context(), req)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, sess, http.StatusCreated)
}

// guest handles POST /api/auth/guest
func (routes *Routes) guest(w http.ResponseWriter, r *http.Request) {
	var req GuestRequest
	if err := common.DecodeJSONBody(w, r, &req, true); err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	sess, err := routes.service.Guest(r.Context())
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, sess, http.StatusOK)
}

// profile handles GET /api/auth/profile/{userID}
func (routes *Routes) profile(w http.ResponseWriter, r *http.Request) {
	userID, err := common.URLParam(r, "userID", "user_id")
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	profile, err := routes.service.Profile(r.Context(), userID)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, profile, http.StatusOK)
}

// logout handles POST /api/auth/logout
func (routes *Routes) logout(w http.ResponseWriter, r *http.Request) {
	common.WriteJSONResponse(w, routes.service.Logout(r.Context()), http.StatusOK)
}
