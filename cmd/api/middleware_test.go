package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seyikole/chatlink/internal/auth"
)

func newAuthTestRouter(t *testing.T, mgr *auth.JWTManager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{auth: mgr}
	r := gin.New()
	r.GET("/probe", s.authRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"identity": identityFrom(c)})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	mgr := auth.NewJWTManager("test-secret", time.Hour)
	r := newAuthTestRouter(t, mgr)

	// no header
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status = %d", w.Code)
	}

	// malformed scheme
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Basic abc123")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: status = %d", w.Code)
	}

	// garbage token
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d", w.Code)
	}

	// valid token passes and the identity reaches the handler
	token, _, err := mgr.GenerateToken("user_ada", "Ada")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, body = %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); body != `{"identity":"user_ada"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestAuthRequiredRejectsWrongSecret(t *testing.T) {
	mgr := auth.NewJWTManager("server-secret", time.Hour)
	other := auth.NewJWTManager("other-secret", time.Hour)
	r := newAuthTestRouter(t, mgr)

	token, _, err := other.GenerateToken("user_ada", "Ada")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("foreign token: status = %d", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Token abc", ""},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			c.Request.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(c); got != tc.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
