package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ednova/ednova/internal/auth"
	"github.com/ednova/ednova/internal/model"
)

var testSecret = []byte("middleware-test-secret")

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestRequireAuthNoCookie(t *testing.T) {
	next, called := okHandler()
	h := RequireAuth(testSecret)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if *called {
		t.Error("next handler should not run without a cookie")
	}
}

func TestRequireAuthBadToken(t *testing.T) {
	next, called := okHandler()
	h := RequireAuth(testSecret)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if *called {
		t.Error("next handler should not run with a bad token")
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	var gotID int64
	var gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = auth.UserID(r.Context())
		gotRole = auth.Role(r.Context())
	})
	h := RequireAuth(testSecret)(next)

	token, err := auth.NewToken(testSecret, 9, model.RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotID != 9 {
		t.Errorf("UserID = %d, want 9", gotID)
	}
	if gotRole != model.RoleUser {
		t.Errorf("Role = %q, want %q", gotRole, model.RoleUser)
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	next, called := okHandler()
	h := RequireAdmin(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: model.RoleUser})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if *called {
		t.Error("next handler should not run for non-admin")
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	next, called := okHandler()
	h := RequireAdmin(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: model.RoleAdmin})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	if !*called {
		t.Error("next handler should run for admin")
	}
}
