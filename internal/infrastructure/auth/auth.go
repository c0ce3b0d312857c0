package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/config"
	"jan-server/services/listen-api/internal/utils/platformerrors"
)

// Context keys set by the middleware.
const (
	ContextUserID      = "user_id"
	ContextDisplayName = "display_name"
	ContextPrincipal   = "principal"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*Principal, error)
}

// Validator resolves the identity of every API caller.
type Validator struct {
	enabled      bool
	trustHeaders bool
	tokens       TokenValidator
	log          zerolog.Logger
}

// NewValidator initializes the Keycloak validator when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	log = log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		log.Warn().Msg("auth disabled, trusting X-User-ID headers")
		return &Validator{log: log}, nil
	}

	keycloak, err := NewKeycloakValidator(ctx, cfg.AuthJWKSURL, cfg.AuthIssuer, cfg.AuthAudience, 5*time.Minute, time.Minute, log)
	if err != nil {
		return nil, err
	}
	if cfg.TrustGatewayHeaders {
		log.Info().Msg("trusting gateway identity headers")
	}
	return NewValidatorWith(keycloak, log).TrustGatewayHeaders(cfg.TrustGatewayHeaders), nil
}

// NewValidatorWith builds an enabled validator around tokens. Gateway
// headers are ignored until TrustGatewayHeaders is set.
func NewValidatorWith(tokens TokenValidator, log zerolog.Logger) *Validator {
	return &Validator{enabled: true, tokens: tokens, log: log}
}

// TrustGatewayHeaders makes an enabled validator accept X-User-ID and
// X-User-Subject set by an upstream gateway.
func (v *Validator) TrustGatewayHeaders(trust bool) *Validator {
	v.trustHeaders = trust
	return v
}

// Middleware sets the caller identity on the context or aborts with 401.
// With auth disabled the X-User-ID header is the only identity source. With
// auth enabled a bearer token is required unless gateway headers are trusted.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := gatewayUserID(c); userID != "" && (!v.enabled || v.trustHeaders) {
			c.Set(ContextUserID, userID)
			if name := strings.TrimSpace(c.GetHeader("X-User-Name")); name != "" {
				c.Set(ContextDisplayName, name)
			}
			c.Next()
			return
		}
		if !v.enabled {
			platformerrors.WriteUnauthorized(c, "X-User-ID header is required")
			c.Abort()
			return
		}

		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("access_token")
		}
		if raw == "" {
			platformerrors.WriteUnauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		principal, err := v.tokens.Validate(c.Request.Context(), raw)
		if err != nil {
			v.log.Debug().Err(err).Msg("jwt validation failed")
			platformerrors.WriteUnauthorized(c, "invalid token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, principal.Subject)
		c.Set(ContextDisplayName, principal.DisplayName())
		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// UserID returns the authenticated caller identity.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// DisplayName returns the caller display name, if known.
func DisplayName(c *gin.Context) string {
	return c.GetString(ContextDisplayName)
}

func gatewayUserID(c *gin.Context) string {
	if userID := strings.TrimSpace(c.GetHeader("X-User-ID")); userID != "" {
		return userID
	}
	return strings.TrimSpace(c.GetHeader("X-User-Subject"))
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
