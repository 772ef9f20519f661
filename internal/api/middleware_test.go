package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "middleware-test-secret"

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func defaultClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":      "alice",
		"user_id":  float64(7),
		"is_admin": false,
		"iat":      now.Unix(),
		"exp":      now.Add(30 * time.Minute).Unix(),
	}
}

func protectedRequest(t *testing.T) (http.Handler, *http.Request) {
	t.Helper()
	handler := AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	return handler, req
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	var gotUsername string
	var gotUserID int64
	var gotAdmin bool
	handler := AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUsername, _ = GetUsername(r.Context())
		gotUserID, _ = GetUserID(r.Context())
		gotAdmin = IsAdmin(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, testSecret, defaultClaims()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUsername != "alice" {
		t.Fatalf("expected username alice in context, got %q", gotUsername)
	}
	if gotUserID != 7 {
		t.Fatalf("expected user id 7 in context, got %d", gotUserID)
	}
	if gotAdmin {
		t.Fatal("expected non-admin context")
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	handler, req := protectedRequest(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a header, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	handler, req := protectedRequest(t)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a non-bearer header, got %d", rec.Code)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	handler, req := protectedRequest(t)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "some-other-secret", defaultClaims()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a foreign signature, got %d", rec.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	claims := defaultClaims()
	claims["exp"] = time.Now().Add(-time.Minute).Unix()

	handler, req := protectedRequest(t)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, testSecret, claims))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an expired token, got %d", rec.Code)
	}
}

func TestAuthMiddleware_RejectsUnsignedToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, defaultClaims())
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	handler, req := protectedRequest(t)
	req.Header.Set("Authorization", "Bearer "+unsigned)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for alg=none, got %d", rec.Code)
	}
}

func TestAdminOnly(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(testSecret)(AdminOnly(inner))

	claims := defaultClaims()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/errors", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, testSecret, claims))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-admin, got %d", rec.Code)
	}

	claims["is_admin"] = true
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/errors", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, testSecret, claims))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an admin, got %d", rec.Code)
	}
}
