package auth

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	errors "github.com/frahmantamala/workpermit/internal"
)

// Claims carries the acting identity and its tenant. Subject repeats the
// identity id for tooling that only reads registered claims.
type Claims struct {
	TenantID   int64 `json:"tenant_id"`
	IdentityID int64 `json:"identity_id"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() errors.Actor {
	return errors.Actor{TenantID: c.TenantID, IdentityID: c.IdentityID}
}

type TokenGenerator interface {
	GenerateAccessToken(actor errors.Actor) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTTokenGenerator struct {
	Secret         []byte
	Issuer         string
	AccessTokenTTL time.Duration
	now            func() time.Time
}

func NewJWTTokenGenerator(secret, issuer string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTTokenGenerator{
		Secret:         []byte(secret),
		Issuer:         issuer,
		AccessTokenTTL: ttl,
		now:            time.Now,
	}
}

func (j *JWTTokenGenerator) GenerateAccessToken(actor errors.Actor) (string, time.Time, error) {
	issuedAt := j.now()
	expiresAt := issuedAt.Add(j.AccessTokenTTL)

	claims := &Claims{
		TenantID:   actor.TenantID,
		IdentityID: actor.IdentityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.Issuer,
			Subject:   strconv.FormatInt(actor.IdentityID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return j.Secret, nil
	}, opts...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TenantID <= 0 || claims.IdentityID <= 0 {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
