package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), "u1", []string{RoleDoctor}, "dr-1"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := RequireRole(RoleDoctor, RoleStaff)(okHandler)(c)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), "u1", []string{"patient"}, ""))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := RequireRole(RoleDoctor, RoleStaff)(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), "root", []string{RoleAdmin}, ""))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequireRole(RoleDoctor)(okHandler)(c); err != nil {
		t.Errorf("admin should bypass role check, got %v", err)
	}
}

func TestRoleHelpers(t *testing.T) {
	tests := []struct {
		name      string
		roles     []string
		wantAdmin bool
		wantDoc   bool
	}{
		{"admin", []string{RoleAdmin}, true, false},
		{"staff", []string{RoleStaff}, true, false},
		{"doctor", []string{RoleDoctor}, false, true},
		{"doctor and staff", []string{RoleDoctor, RoleStaff}, true, true},
		{"none", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithIdentity(context.Background(), "u", tt.roles, "")
			if got := IsAdministrative(ctx); got != tt.wantAdmin {
				t.Errorf("IsAdministrative = %v, want %v", got, tt.wantAdmin)
			}
			if got := IsDoctor(ctx); got != tt.wantDoc {
				t.Errorf("IsDoctor = %v, want %v", got, tt.wantDoc)
			}
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDKey, "user-123")
	if uid := UserIDFromContext(ctx); uid != "user-123" {
		t.Errorf("expected user-123, got %s", uid)
	}
	if empty := UserIDFromContext(context.Background()); empty != "" {
		t.Errorf("expected empty string, got %s", empty)
	}
}
