package authhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"staffbook/internal/domain/auth"
	"staffbook/internal/domain/listing"
	"staffbook/internal/platform/docstore"
	"staffbook/internal/platform/docstore/memstore"
	"staffbook/internal/transport/http/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newRouter(t *testing.T) (http.Handler, *listing.Registry) {
	t.Helper()
	store := docstore.New(memstore.New())
	svc := auth.NewService(auth.NewStore(store), "test-secret", time.Hour)
	if _, _, err := svc.EnsureAccount(context.Background(), "admin@test.local", "ChangeMe123!", auth.RoleAdmin); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	views := listing.NewRegistry(10)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(svc))
	NewHandler(svc, views).RegisterRoutes(r)
	return r, views
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return rec.Code, env
}

func TestLoginMeLogout(t *testing.T) {
	h, views := newRouter(t)

	status, env := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": "ADMIN@test.local", "password": "ChangeMe123!"})
	if status != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d", status)
	}
	var token auth.Token
	if err := json.Unmarshal(env.Data, &token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if token.AccessToken == "" || token.Profile.Role != auth.RoleAdmin {
		t.Fatalf("unexpected token %+v", token)
	}

	status, env = do(t, h, http.MethodGet, "/me", token.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("expected /me to succeed, got %d", status)
	}
	var me struct {
		User        auth.Profile `json:"user"`
		Permissions []string     `json:"permissions"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if me.User.Email != "admin@test.local" {
		t.Fatalf("expected lower-cased email, got %q", me.User.Email)
	}
	if !slices.Contains(me.Permissions, auth.PermRecyclePurge) {
		t.Fatalf("expected admin to hold %s, got %v", auth.PermRecyclePurge, me.Permissions)
	}

	claims, err := auth.ParseToken("test-secret", token.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	views.Session(claims.SessionID)
	if views.Len() != 1 {
		t.Fatalf("expected one list session, got %d", views.Len())
	}

	if status, _ = do(t, h, http.MethodPost, "/auth/logout", token.AccessToken, nil); status != http.StatusOK {
		t.Fatalf("expected logout to succeed, got %d", status)
	}
	if views.Len() != 0 {
		t.Fatalf("expected logout to drop the list session, %d left", views.Len())
	}

	status, env = do(t, h, http.MethodGet, "/me", token.AccessToken, nil)
	if status != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "unauthorized" {
		t.Fatalf("expected revoked token to be rejected, got %d %+v", status, env.Error)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, _ := newRouter(t)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "wrong password",
			body:       map[string]string{"email": "admin@test.local", "password": "wrong"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_credentials",
		},
		{
			name:       "unknown account",
			body:       map[string]string{"email": "nobody@test.local", "password": "ChangeMe123!"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_credentials",
		},
		{
			name:       "missing email",
			body:       map[string]string{"email": ""},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, env := do(t, h, http.MethodPost, "/auth/login", "", tc.body)
			if status != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, status)
			}
			if env.Error == nil || env.Error.Code != tc.wantCode {
				t.Fatalf("expected error code %q, got %+v", tc.wantCode, env.Error)
			}
		})
	}
}
