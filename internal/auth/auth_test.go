package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func chain(keys []string) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		w.Header().Set("X-Role", p.Role)
		w.Header().Set("X-Method", p.Method)
		w.WriteHeader(http.StatusOK)
	})
	return NewAPIKeyMiddleware("X-API-Key", keys).Authenticate(
		NewJWTMiddleware(testSecret).Authenticate(final),
	)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	userToken, err := NewToken(testSecret, "user-1", RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	expired, err := NewToken(testSecret, "user-1", RoleUser, -time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	foreign, err := NewToken("other-secret", "user-1", RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	tests := []struct {
		name       string
		header     map[string]string
		query      string
		wantStatus int
		wantMethod string
	}{
		{"no credentials", nil, "", http.StatusUnauthorized, ""},
		{"valid api key", map[string]string{"X-API-Key": "k2"}, "", http.StatusOK, MethodAPIKey},
		{"invalid api key", map[string]string{"X-API-Key": "nope"}, "", http.StatusUnauthorized, ""},
		{"bearer token", map[string]string{"Authorization": "Bearer " + userToken}, "", http.StatusOK, MethodJWT},
		{"query token", nil, "?access_token=" + userToken, http.StatusOK, MethodJWT},
		{"expired token", map[string]string{"Authorization": "Bearer " + expired}, "", http.StatusUnauthorized, ""},
		{"wrong secret", map[string]string{"Authorization": "Bearer " + foreign}, "", http.StatusUnauthorized, ""},
	}

	h := chain([]string{"k1", "k2"})
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("X-Method"); got != tt.wantMethod {
				t.Fatalf("expected method %q, got %q", tt.wantMethod, got)
			}
		})
	}
}

func TestJWTRejectsNonHMAC(t *testing.T) {
	t.Parallel()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	chain(nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireRole(RoleAdmin)(ok)

	tests := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{"none", nil, http.StatusForbidden},
		{"user", &Principal{Subject: "u", Role: RoleUser}, http.StatusForbidden},
		{"admin", &Principal{Subject: "a", Role: RoleAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.principal != nil {
			req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, rec.Code)
		}
	}
}
