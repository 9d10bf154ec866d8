package httptransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"medid-server-go/internal/domain/auth"
	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/observability"
)

func newTestRouter(t *testing.T, middleware gin.HandlerFunc) *Router {
	t.Helper()
	router, err := Build(Options{Config: config.DefaultConfig(), AuthMiddleware: middleware})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	router.API.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, "open") })
	router.Secured.GET("/closed", func(c *gin.Context) {
		claims := c.MustGet(ClaimsKey).(*auth.Claims)
		c.String(http.StatusOK, claims.Subject)
	})
	return router
}

func TestBuildRequiresConfig(t *testing.T) {
	if _, err := Build(Options{}); err == nil {
		t.Fatalf("Build() without config succeeded")
	}
}

func TestBearerAuth(t *testing.T) {
	tokens, err := auth.NewAuthToken("test-secret")
	if err != nil {
		t.Fatalf("NewAuthToken() error = %v", err)
	}
	router := newTestRouter(t, BearerAuth(tokens, nil))
	valid, err := tokens.GenerateToken("client-1", "analyze")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"public route", "/api/open", "", http.StatusOK, "open"},
		{"missing header", "/api/closed", "", http.StatusUnauthorized, "authentication_error"},
		{"wrong scheme", "/api/closed", "Basic abc", http.StatusUnauthorized, "authentication_error"},
		{"bad token", "/api/closed", "Bearer nope", http.StatusUnauthorized, "authentication_error"},
		{"valid token", "/api/closed", "Bearer " + valid, http.StatusOK, "client-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.Engine.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestVerifyRequest(t *testing.T) {
	tokens, err := auth.NewAuthToken("test-secret")
	if err != nil {
		t.Fatalf("NewAuthToken() error = %v", err)
	}
	valid, _ := tokens.GenerateToken("client-1", "stream")
	verify := VerifyRequest(tokens)

	tests := []struct {
		name    string
		target  string
		header  string
		wantErr bool
	}{
		{"none", "/ws", "", true},
		{"query token", "/ws?token=" + valid, "", false},
		{"header token", "/ws", "Bearer " + valid, false},
		{"header wins over query", "/ws?token=" + valid, "Bearer nope", true},
		{"bad query token", "/ws?token=nope", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if err := verify(req); (err != nil) != tt.wantErr {
				t.Fatalf("verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSecuredFallsBackToAPI(t *testing.T) {
	router, err := Build(Options{Config: config.DefaultConfig()})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if router.Secured != router.API {
		t.Fatalf("Secured group should be the API group without auth")
	}
}

func TestObservabilityMiddlewareCountsRequests(t *testing.T) {
	router := newTestRouter(t, nil)
	key := "http.requests{method=GET,path=/api/open,status=200}"
	before := observability.Default().Snapshot().Counters[key]

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/open", nil))

	if got := observability.Default().Snapshot().Counters[key]; got != before+1 {
		t.Fatalf("counter %s = %d, want %d", key, got, before+1)
	}
}

func TestMountDocs(t *testing.T) {
	router := newTestRouter(t, nil)
	MountDocs(router.Engine, nil)

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("openapi.json is not JSON: %v", err)
	}
	if doc.BasePath != "/api" || doc.Paths["/analyze-medication"]["post"] == nil {
		t.Fatalf("unexpected document: base=%q paths=%d", doc.BasePath, len(doc.Paths))
	}

	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/openapi.json") {
		t.Fatalf("docs page status = %d", rec.Code)
	}
}
