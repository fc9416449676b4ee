package auth

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/directory"
)

type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service verifies bearer tokens and mints them for known identities. Login
// itself happens upstream.
type Service struct {
	directory      directory.Directory
	tokenGenerator TokenGenerator
	logger         *slog.Logger
}

func NewService(dir directory.Directory, tokenGen TokenGenerator, logger *slog.Logger) *Service {
	return &Service{
		directory:      dir,
		tokenGenerator: tokenGen,
		logger:         logger,
	}
}

// IssueToken mints an access token for an identity that exists in the
// directory under the given tenant.
func (s *Service) IssueToken(ctx context.Context, tenantID, identityID int64) (IssuedToken, error) {
	identity, err := s.directory.GetIdentity(ctx, identityID)
	if err != nil {
		if stderrors.Is(err, directory.ErrNotFound) {
			return IssuedToken{}, errors.ErrUnknownIdentity
		}
		return IssuedToken{}, err
	}
	if identity.TenantID != tenantID {
		return IssuedToken{}, errors.ErrTenantMismatch
	}

	token, expiresAt, err := s.tokenGenerator.GenerateAccessToken(errors.Actor{TenantID: tenantID, IdentityID: identityID})
	if err != nil {
		s.logger.Error("failed to generate access token", "error", err, "identity_id", identityID)
		return IssuedToken{}, err
	}

	s.logger.Info("access token issued", "identity_id", identityID, "tenant_id", tenantID, "expires_at", expiresAt)
	return IssuedToken{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

func (s *Service) ValidateAccessToken(tokenString string) (errors.Actor, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString)
	if err != nil {
		return errors.Actor{}, err
	}
	return claims.Actor(), nil
}

// CurrentIdentity loads the caller's directory record, rejecting tokens whose
// identity has moved or vanished.
func (s *Service) CurrentIdentity(ctx context.Context, actor errors.Actor) (*directory.Identity, error) {
	identity, err := s.directory.GetIdentity(ctx, actor.IdentityID)
	if err != nil {
		if stderrors.Is(err, directory.ErrNotFound) {
			return nil, errors.ErrUnknownIdentity
		}
		return nil, err
	}
	if identity.TenantID != actor.TenantID {
		return nil, errors.ErrTenantMismatch
	}
	return identity, nil
}
