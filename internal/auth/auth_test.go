package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startickets/internal/config"
	"startickets/internal/logger"
	"startickets/internal/models"
)

const secret = "test-secret"

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "bearer abc.def.ghi")
	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier(secret, "startickets")

	token, err := SignHMAC(secret, "startickets", 42, models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	a, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.AuthContext{UserID: 42, Role: models.RoleAdmin}, a)
}

func TestHMACVerifierRejects(t *testing.T) {
	v := NewHMACVerifier(secret, "startickets")

	wrongSecret, _ := SignHMAC("other", "startickets", 42, models.RoleCustomer, time.Hour)
	wrongIssuer, _ := SignHMAC(secret, "elsewhere", 42, models.RoleCustomer, time.Hour)
	expired, _ := SignHMAC(secret, "startickets", 42, models.RoleCustomer, -time.Minute)
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "startickets",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "startickets",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))

	for name, token := range map[string]string{
		"wrong secret": wrongSecret,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"bad subject":  badSubject,
		"bad role":     badRole,
		"garbage":      "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPickRole(t *testing.T) {
	assert.Equal(t, "Customer", pickRole("Customer", []string{"admin"}))
	assert.Equal(t, "admin", pickRole("", []string{"offline_access", "customer", "admin"}))
	assert.Equal(t, "organizer", pickRole("", []string{"customer", "organizer"}))
	assert.Equal(t, "", pickRole("", []string{"offline_access"}))
}

func TestNewVerifierRequiresConfiguration(t *testing.T) {
	_, err := NewVerifier(context.Background(), config.AuthConfig{})
	assert.Error(t, err)

	v, err := NewVerifier(context.Background(), config.AuthConfig{JWTSecret: secret})
	require.NoError(t, err)
	assert.IsType(t, &HMACVerifier{}, v)
}

func TestMiddlewareAndRequireRole(t *testing.T) {
	log := logger.NewDiscard()
	v := NewHMACVerifier(secret, "")

	var seen models.AuthContext
	h := Middleware(v, log)(RequireRole(log, models.RoleCustomer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	do := func(token string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	customerToken, err := SignHMAC(secret, "", 7, models.RoleCustomer, time.Hour)
	require.NoError(t, err)
	organizerToken, err := SignHMAC(secret, "", 8, models.RoleEventOrganizer, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("nope"))
	assert.Equal(t, http.StatusForbidden, do(organizerToken))
	assert.Equal(t, http.StatusNoContent, do(customerToken))
	assert.Equal(t, int64(7), seen.UserID)
}
