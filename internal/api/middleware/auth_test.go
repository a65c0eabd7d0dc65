package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuhair246/kitab4u-sub000/internal/auth"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key", 15*time.Minute, 7*24*time.Hour)
}

func issueAccess(t *testing.T, jwtService *auth.JWTService, userID, name, role string) string {
	t.Helper()
	pair, err := jwtService.Issue(userID, name, role)
	require.NoError(t, err)
	return pair.AccessToken
}

func claimsCapturingHandler(captured **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := GetClaims(r.Context()); ok {
			*captured = claims
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthValidTokenHeader(t *testing.T) {
	jwtService := newTestJWTService()
	token := issueAccess(t, jwtService, "user-123", "Reader", "customer")

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	RequireAuth(jwtService)(claimsCapturingHandler(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-123", captured.UserID)
	assert.Equal(t, "customer", captured.Role)
}

func TestRequireAuthValidTokenCookie(t *testing.T) {
	jwtService := newTestJWTService()
	token := issueAccess(t, jwtService, "user-456", "Admin", "admin")

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec := httptest.NewRecorder()

	RequireAuth(jwtService)(claimsCapturingHandler(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-456", captured.UserID)
}

func TestRequireAuthCookieTakesPrecedence(t *testing.T) {
	jwtService := newTestJWTService()
	cookieToken := issueAccess(t, jwtService, "cookie-user", "Cookie", "customer")
	headerToken := issueAccess(t, jwtService, "header-user", "Header", "admin")

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+headerToken)
	rec := httptest.NewRecorder()

	RequireAuth(jwtService)(claimsCapturingHandler(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "cookie-user", captured.UserID)
}

func TestRequireAuthRejections(t *testing.T) {
	jwtService := newTestJWTService()

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
	}{
		{
			"no token",
			func(*http.Request) {},
			http.StatusUnauthorized,
		},
		{
			"garbage token",
			func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not-a-token")
			},
			http.StatusUnauthorized,
		},
		{
			"wrong signing key",
			func(r *http.Request) {
				other := auth.NewJWTService("other-secret", 15*time.Minute, time.Hour)
				r.Header.Set("Authorization", "Bearer "+issueAccess(t, other, "user-1", "X", "customer"))
			},
			http.StatusUnauthorized,
		},
		{
			// Refresh tokens parse as access tokens but carry no user
			// claims; they must not open authenticated routes.
			"refresh token",
			func(r *http.Request) {
				pair, err := jwtService.Issue("user-1", "X", "customer")
				require.NoError(t, err)
				r.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
			},
			http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			RequireAuth(jwtService)(handler).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 1*time.Millisecond, time.Hour)
	token := issueAccess(t, jwtService, "user-123", "Reader", "customer")
	time.Sleep(10 * time.Millisecond)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	RequireAuth(jwtService)(handler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func withClaims(req *http.Request, claims *auth.Claims) *http.Request {
	ctx := context.WithValue(req.Context(), UserContextKey, claims)
	return req.WithContext(ctx)
}

func TestRequireRole(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		roles    []string
		claims   *auth.Claims
		wantCode int
	}{
		{"matching role", []string{"admin"}, &auth.Claims{UserID: "u", Role: "admin"}, http.StatusOK},
		{"alternate role", []string{"admin", "support"}, &auth.Claims{UserID: "u", Role: "support"}, http.StatusOK},
		{"wrong role", []string{"admin"}, &auth.Claims{UserID: "u", Role: "customer"}, http.StatusForbidden},
		{"no claims", []string{"admin"}, nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.claims != nil {
				req = withClaims(req, tt.claims)
			}
			rec := httptest.NewRecorder()

			RequireRole(tt.roles...)(handler).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestGetUserID(t *testing.T) {
	assert.Empty(t, GetUserID(context.Background()))

	ctx := context.WithValue(context.Background(), UserContextKey, &auth.Claims{UserID: "user-123"})
	assert.Equal(t, "user-123", GetUserID(ctx))
}
