package auth

import (
	"context"
	"net/http"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/transport"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

type ServiceAPI interface {
	ValidateAccessToken(tokenString string) (errors.Actor, error)
	CurrentIdentity(ctx context.Context, actor errors.Actor) (*directory.Identity, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

type IdentityResponse struct {
	ID           int64  `json:"id"`
	TenantID     int64  `json:"tenant_id"`
	FullName     string `json:"full_name"`
	PlatformRole string `json:"platform_role"`
}

func (h *Handler) GetCurrentIdentity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	identity, err := h.Service.CurrentIdentity(r.Context(), actor)
	if err != nil {
		h.Logger.Error("GetCurrentIdentity: service error", "error", err, "identity_id", actor.IdentityID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, IdentityResponse{
		ID:           identity.ID,
		TenantID:     identity.TenantID,
		FullName:     identity.FullName,
		PlatformRole: string(identity.PlatformRole),
	})
}

// AuthMiddleware verifies the bearer token and stores the actor on the
// request context, also tagging the request logger with it.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.Logger.Warn("auth middleware: missing authorization token", "path", r.URL.Path)
			h.HandleServiceError(w, errors.ErrInvalidToken)
			return
		}

		actor, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("auth middleware: token validation failed", "error", err)
			h.HandleServiceError(w, err)
			return
		}

		ctx := errors.ContextWithActor(r.Context(), actor)
		ctx = logger.With(ctx, "tenant_id", actor.TenantID, "identity_id", actor.IdentityID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireTenantManager lets the request through only when the actor holds
// the tenant-manager platform role.
func (h *Handler) RequireTenantManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.RequireActor(w, r)
		if !ok {
			return
		}

		identity, err := h.Service.CurrentIdentity(r.Context(), actor)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		if !identity.IsTenantManager() {
			h.Logger.Warn("access denied: tenant manager required",
				"identity_id", actor.IdentityID,
				"tenant_id", actor.TenantID,
				"path", r.URL.Path)
			h.HandleServiceError(w, errors.ErrManagerRequired)
			return
		}

		next.ServeHTTP(w, r)
	})
}
