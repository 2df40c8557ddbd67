// Package entities provides the catalog listing and lookup endpoints.
package entities

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matrixhub/catalog-server/internal/api/common"
	"github.com/matrixhub/catalog-server/internal/service"
)

// Routes handles HTTP requests for catalog entities.
type Routes struct {
	service service.CatalogService
}

// NewRoutes creates a new Routes instance with the given service.
func NewRoutes(svc service.CatalogService) *Routes {
	return &Routes{service: svc}
}

// Router creates the router for /entities
func Router(svc service.CatalogService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/", routes.listEntities)
	r.Get("/{uid}", routes.getEntity)
	return r
}

// listEntities handles GET /api/entities
//
// Query parameters q, type, protocol, limit and offset map one to one onto the
// list options. A parameter that is present but empty is treated as absent.
func (routes *Routes) listEntities(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	entities, err := routes.service.ListEntities(r.Context(), opts...)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, entities, http.StatusOK)
}

// getEntity handles GET /api/entities/{uid}
func (routes *Routes) getEntity(w http.ResponseWriter, r *http.Request) {
	uid, err := common.URLParam(r, "uid", "uid")
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	entity, err := routes.service.GetEntity(r.Context(), uid)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, entity, http.StatusOK)
}

func parseListOptions(r *http.Request) ([]service.ListOption, error) {
	query := r.URL.Query()
	verr := &service.ValidationError{}
	var opts []service.ListOption

	if q := query.Get("q"); q != "" {
		opts = append(opts, service.WithQuery(q))
	}
	if t := query.Get("type"); t != "" {
		opts = append(opts, service.WithType(t))
	}
	if p := query.Get("protocol"); p != "" {
		opts = append(opts, service.WithProtocol(p))
	}
	if s := query.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			verr.Add("limit", "must be an integer")
		} else {
			opts = append(opts, service.WithLimit(limit))
		}
	}
	if s := query.Get("offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil {
			verr.Add("offset", "must be an integer")
		} else {
			opts = append(opts, service.WithOffset(offset))
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return opts, nil
}
