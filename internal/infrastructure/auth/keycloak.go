package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Principal is the caller identity extracted from a validated token.
type Principal struct {
	Subject           string
	Issuer            string
	Audience          []string
	PreferredUsername string
	Name              string
	Picture           string
	ExpiresAt         time.Time
}

// DisplayName returns the friendliest name the token carries.
func (p *Principal) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.PreferredUsername != "":
		return p.PreferredUsername
	default:
		return p.Subject
	}
}

// KeycloakValidator validates RS256 tokens against a Keycloak JWKS endpoint.
type KeycloakValidator struct {
	issuer    string
	audience  string
	jwksURL   string
	clockSkew time.Duration
	refresh   time.Duration
	log       zerolog.Logger

	jwks    atomic.Pointer[keyfunc.JWKS]
	lastErr atomic.Value // refreshErr
}

type refreshErr struct{ err error }

const (
	jwksRetryInterval   = time.Second
	jwksRetryMaxBackoff = 10 * time.Second
	jwksRetryTimeout    = 2 * time.Minute
)

// NewKeycloakValidator fetches the JWKS, retrying with backoff until ctx or
// the retry window ends, and keeps it refreshed in background.
func NewKeycloakValidator(ctx context.Context, jwksURL, issuer, audience string, refresh, clockSkew time.Duration, log zerolog.Logger) (*KeycloakValidator, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}
	v := &KeycloakValidator{
		issuer:    issuer,
		audience:  audience,
		jwksURL:   jwksURL,
		clockSkew: clockSkew,
		refresh:   refresh,
		log:       log.With().Str("component", "keycloak-validator").Logger(),
	}
	v.lastErr.Store(refreshErr{})

	if err := v.fetch(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *KeycloakValidator) fetch(ctx context.Context) error {
	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   v.refresh,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			v.lastErr.Store(refreshErr{err: err})
			if err != nil {
				v.log.Error().Err(err).Msg("jwks refresh failed")
			}
		},
	}

	backoff := jwksRetryInterval
	deadline := time.Now().Add(jwksRetryTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for attempt := 1; ; attempt++ {
		jwks, err := keyfunc.Get(v.jwksURL, options)
		if err == nil {
			v.jwks.Store(jwks)
			v.lastErr.Store(refreshErr{})
			return nil
		}
		v.log.Warn().Err(err).Str("jwks_url", v.jwksURL).Int("attempt", attempt).Msg("jwks fetch failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("fetch jwks: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("fetch jwks: %w", err)
		}
		backoff = min(backoff*2, jwksRetryMaxBackoff)
	}
}

// Validate parses rawToken and checks issuer, audience and lifetime.
func (v *KeycloakValidator) Validate(_ context.Context, rawToken string) (*Principal, error) {
	jwks := v.jwks.Load()
	if jwks == nil {
		return nil, errors.New("jwks not initialised")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithLeeway(v.clockSkew))
	token, err := parser.ParseWithClaims(rawToken, jwt.MapClaims{}, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	iss := claimString(claims["iss"])
	if iss != v.issuer {
		return nil, fmt.Errorf("issuer mismatch %s", iss)
	}
	audiences, err := audienceList(claims["aud"])
	if err != nil {
		return nil, err
	}
	if v.audience != "" && len(audiences) > 0 && !slices.Contains(audiences, v.audience) {
		return nil, errors.New("audience mismatch")
	}

	sub := claimString(claims["sub"])
	if sub == "" {
		return nil, errors.New("sub claim missing")
	}

	return &Principal{
		Subject:           sub,
		Issuer:            iss,
		Audience:          audiences,
		PreferredUsername: claimString(claims["preferred_username"]),
		Name:              claimString(claims["name"]),
		Picture:           claimString(claims["picture"]),
		ExpiresAt:         numericTime(claims["exp"]),
	}, nil
}

// Ready reports whether the JWKS is loaded and the last refresh succeeded.
func (v *KeycloakValidator) Ready() bool {
	if v.jwks.Load() == nil {
		return false
	}
	last, _ := v.lastErr.Load().(refreshErr)
	return last.err == nil
}

func audienceList(raw any) ([]string, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("aud claim unsupported type %T", val)
	}
}

func numericTime(value any) time.Time {
	switch t := value.(type) {
	case float64:
		return time.Unix(int64(t), 0).UTC()
	case int64:
		return time.Unix(t, 0).UTC()
	case json.Number:
		if unix, err := t.Int64(); err == nil {
			return time.Unix(unix, 0).UTC()
		}
	}
	return time.Time{}
}

func claimString(value any) string {
	s, _ := value.(string)
	return s
}
