package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"startickets/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a raw bearer token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (models.AuthContext, error)
}

// Claims carried by StarTickets access tokens. Subject is the numeric user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// HMACVerifier checks HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	issuer string
}

func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *HMACVerifier) Verify(ctx context.Context, rawToken string) (models.AuthContext, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return models.AuthContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return toAuthContext(claims.Subject, claims.Role)
}

// SignHMAC issues a token HMACVerifier accepts. Used by the seed command and tests.
func SignHMAC(secret, issuer string, userID int64, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func toAuthContext(subject, role string) (models.AuthContext, error) {
	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || userID <= 0 {
		return models.AuthContext{}, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, subject)
	}

	r, ok := parseRole(role)
	if !ok {
		return models.AuthContext{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return models.AuthContext{UserID: userID, Role: r}, nil
}

// parseRole defaults an absent role to Customer.
func parseRole(role string) (models.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", "customer":
		return models.RoleCustomer, true
	case "admin":
		return models.RoleAdmin, true
	case "eventorganizer", "event_organizer", "organizer":
		return models.RoleEventOrganizer, true
	}
	return "", false
}
