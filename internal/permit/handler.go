package permit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/validation"
	"github.com/frahmantamala/workpermit/internal/grant"
	"github.com/frahmantamala/workpermit/internal/transport"
)

type ServiceAPI interface {
	CreatePermit(ctx context.Context, actor errors.Actor, dto CreatePermitDTO) (*WorkPermit, error)
	GetPermit(ctx context.Context, tenantID, id int64) (*WorkPermit, error)
	ListPermits(ctx context.Context, tenantID int64, filter ListFilter, limit, offset int) ([]*WorkPermit, error)
	ApprovePermit(ctx context.Context, actor errors.Actor, permitID int64, roleType grant.RoleType) (*WorkPermit, error)
	RejectPermit(ctx context.Context, actor errors.Actor, permitID int64, reason string) (*WorkPermit, error)
	DeletePermit(ctx context.Context, actor errors.Actor, permitID int64) error
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

func (h *Handler) CreatePermit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	var dto CreatePermitDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.CreatePermit(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p.ToResponse())
}

func (h *Handler) ListPermits(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	if r.URL.Query().Get("mine") == "true" {
		filter.CreatorID = actor.IdentityID
	}

	permits, err := h.Service.ListPermits(r.Context(), actor.TenantID, filter, limit, offset)
	if err != nil {
		h.Logger.Error("ListPermits: service error", "error", err, "tenant_id", actor.TenantID)
		h.HandleServiceError(w, err)
		return
	}

	resp := PermitsResponse{
		Permits: make([]PermitResponse, 0, len(permits)),
		Limit:   limit,
		Offset:  offset,
	}
	for _, p := range permits {
		resp.Permits = append(resp.Permits, p.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetPermit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.GetPermit(r.Context(), actor.TenantID, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p.ToResponse())
}

// ApprovePermit handles POST /permits/{id}/approve/{role}.
func (h *Handler) ApprovePermit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	roleType, err := grant.ParseRoleType(chi.URLParam(r, "role"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.ApprovePermit(r.Context(), actor, id, roleType)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p.ToResponse())
}

func (h *Handler) RejectPermit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto RejectPermitDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if appErr := validation.Struct(dto); appErr != nil {
		h.HandleServiceError(w, appErr)
		return
	}

	p, err := h.Service.RejectPermit(r.Context(), actor, id, dto.Reason)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p.ToResponse())
}

func (h *Handler) DeletePermit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.DeletePermit(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
