package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"startickets/internal/config"
	"startickets/internal/models"
)

// OIDCVerifier validates tokens from an external identity provider. The numeric
// user id is read from the user_id claim, falling back to sub.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("create oidc provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{
			ClientID:          clientID,
			SkipClientIDCheck: clientID == "",
		}),
	}, nil
}

type oidcClaims struct {
	Sub         string `json:"sub"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (models.AuthContext, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return models.AuthContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return models.AuthContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject := claims.UserID
	if subject == "" {
		subject = claims.Sub
	}
	return toAuthContext(subject, pickRole(claims.Role, claims.RealmAccess.Roles))
}

// pickRole prefers an explicit role claim, then the most privileged realm role.
func pickRole(role string, realmRoles []string) string {
	if role != "" {
		return role
	}
	best := ""
	for _, r := range realmRoles {
		parsed, ok := parseRole(r)
		if !ok {
			continue
		}
		switch {
		case parsed == models.RoleAdmin:
			return r
		case parsed == models.RoleEventOrganizer:
			best = r
		case best == "" && r != "":
			best = r
		}
	}
	return best
}

// NewVerifier picks OIDC when an issuer is configured and HS256 otherwise.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (Verifier, error) {
	if cfg.OIDCIssuer != "" {
		return NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("either OIDC_ISSUER or AUTH_JWT_SECRET must be set")
	}
	return NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer), nil
}
