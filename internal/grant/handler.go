package grant

import (
	"context"
	"net/http"

	"github.com/frahmantamala/workpermit/internal/core/common/validation"
	"github.com/frahmantamala/workpermit/internal/transport"
)

type ServiceAPI interface {
	AddGrant(ctx context.Context, tenantID int64, roleType RoleType, scope Scope, createdBy int64) (int64, error)
	RemoveGrant(ctx context.Context, tenantID, id int64) error
	ListGrants(ctx context.Context, tenantID int64, roleType *RoleType) ([]Grant, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	var filter *RoleType
	if raw := r.URL.Query().Get("role_type"); raw != "" {
		rt, err := ParseRoleType(raw)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		filter = &rt
	}

	grants, err := h.Service.ListGrants(r.Context(), actor.TenantID, filter)
	if err != nil {
		h.Logger.Error("ListGrants: service error", "error", err, "tenant_id", actor.TenantID)
		h.HandleServiceError(w, err)
		return
	}

	resp := GrantsResponse{Grants: make([]GrantResponse, 0, len(grants))}
	for i := range grants {
		resp.Grants = append(resp.Grants, grants[i].ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	var dto CreateGrantDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if appErr := validation.Struct(dto); appErr != nil {
		h.HandleServiceError(w, appErr)
		return
	}

	scope, err := dto.Scope()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	id, err := h.Service.AddGrant(r.Context(), actor.TenantID, RoleType(dto.RoleType), scope, actor.IdentityID)
	if err != nil {
		h.Logger.Error("CreateGrant: service error", "error", err, "tenant_id", actor.TenantID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, CreateGrantResponse{ID: id})
}

func (h *Handler) DeleteGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.RemoveGrant(r.Context(), actor.TenantID, id); err != nil {
		h.Logger.Error("DeleteGrant: service error", "error", err, "grant_id", id)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
