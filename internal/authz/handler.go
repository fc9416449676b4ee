package authz

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/grant"
	"github.com/frahmantamala/workpermit/internal/transport"
)

type ServiceAPI interface {
	Decide(ctx context.Context, tenantID int64, roleType grant.RoleType, identityID int64) (Decision, error)
	ListAuthorizedApprovers(ctx context.Context, tenantID int64, roleType grant.RoleType) ([]ApproverDescription, error)
	EligibleApprovers(ctx context.Context, tenantID int64, roleType grant.RoleType) ([]directory.Identity, error)
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

func (h *Handler) ListApprovers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	roleType, err := grant.ParseRoleType(chi.URLParam(r, "role"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	rules, err := h.Service.ListAuthorizedApprovers(r.Context(), actor.TenantID, roleType)
	if err != nil {
		h.Logger.Error("ListApprovers: service error", "error", err, "tenant_id", actor.TenantID)
		h.HandleServiceError(w, err)
		return
	}

	identities, err := h.Service.EligibleApprovers(r.Context(), actor.TenantID, roleType)
	if err != nil {
		h.Logger.Error("ListApprovers: eligible approvers failed", "error", err, "tenant_id", actor.TenantID)
		h.HandleServiceError(w, err)
		return
	}

	resp := ApproversResponse{
		RoleType:  string(roleType),
		Rules:     rules,
		Approvers: make([]EligibleApprover, 0, len(identities)),
	}
	for _, i := range identities {
		resp.Approvers = append(resp.Approvers, EligibleApprover{IdentityID: i.ID, FullName: i.FullName})
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// CheckApprover tells the caller whether they could sign the role's slot
// right now, and why.
func (h *Handler) CheckApprover(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	roleType, err := grant.ParseRoleType(chi.URLParam(r, "role"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	decision, err := h.Service.Decide(r.Context(), actor.TenantID, roleType, actor.IdentityID)
	if err != nil {
		h.Logger.Error("CheckApprover: service error", "error", err, "identity_id", actor.IdentityID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CheckResponse{RoleType: string(roleType), Decision: decision})
}
