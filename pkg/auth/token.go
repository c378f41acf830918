// Package auth verifies the HS256 access tokens issued by the identity
// service.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

// Verifier checks signature, issuer, audience and expiry of access tokens.
type Verifier struct {
	parser *jwt.Parser
	key    []byte
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(time.Duration(cfg.LeewaySeconds) * time.Second),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{parser: jwt.NewParser(opts...), key: []byte(cfg.Secret)}, nil
}

// Verify parses raw and returns the identity it carries.
func (v *Verifier) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}); err != nil {
		return Identity{}, err
	}
	return claims.identity()
}

// Sign issues a token for id that expires after cfg.ExpirationMinutes. Real
// tokens come from the identity service; Sign serves tooling and tests.
func Sign(cfg config.JWTConfig, id Identity, now time.Time) (string, error) {
	if cfg.Secret == "" || cfg.Issuer == "" {
		return "", errors.New("jwt secret and issuer are required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", errors.New("jwt expiration minutes must be positive")
	}
	if !id.Role.IsValid() {
		return "", fmt.Errorf("unknown role %q", id.Role)
	}
	tokenID := id.TokenID
	if tokenID == "" {
		tokenID = uuid.NewString()
	}
	claims := Claims{
		Role:        id.Role,
		WarehouseID: id.WarehouseID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        tokenID,
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
}

// BearerToken extracts the credentials of an Authorization header using
// the Bearer scheme.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
