package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubVerifier struct {
	identity Identity
	err      error
}

func (s *stubVerifier) VerifyAccessToken(string) (Identity, error) {
	return s.identity, s.err
}

func TestRequireAuthMissingToken(t *testing.T) {
	handler := RequireAuth(&stubVerifier{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	handler := RequireAuth(&stubVerifier{err: ErrInvalidToken})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthRoleMismatch(t *testing.T) {
	verifier := &stubVerifier{identity: Identity{UserID: "user-1", Role: RoleCustomer}}
	handler := RequireAuth(verifier, RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRequireAuthStoresIdentity(t *testing.T) {
	want := Identity{UserID: "user-9", Email: "admin@example.com", Role: RoleAdmin}
	verifier := &stubVerifier{identity: want}

	var got Identity
	var found bool
	handler := RequireAuth(verifier, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if !found || got != want {
		t.Errorf("identity = %+v (found=%t), want %+v", got, found, want)
	}
}

func TestRequireAuthExpiredTokenMessage(t *testing.T) {
	handler := RequireAuth(&stubVerifier{err: ErrExpiredToken})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
