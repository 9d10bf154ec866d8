package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	platformerrors "medid-server-go/internal/platform/errors"
	platformtesting "medid-server-go/internal/platform/testing"
)

func testOptions(t *testing.T, extra map[string]string) Options {
	t.Helper()
	dir := t.TempDir()
	yaml := "log:\n  log_dir: " + dir + "\n  log_file: test.log\n" +
		"storage:\n  dsn: " + filepath.Join(dir, "medid.db") + "\n" +
		"drug_info:\n  cache:\n    driver: sqlite\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := map[string]string{
		"VISION_PROVIDER": "ollama",
		"VISION_BASE_URL": "http://127.0.0.1:11434",
		"ENVIRONMENT":     "test",
	}
	for k, v := range extra {
		env[k] = v
	}
	return Options{ConfigPath: path, Env: env, LogOutput: &bytes.Buffer{}}
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"storage:init-database",
		"druginfo:init-service",
		"vision:init-client",
		"events:init-bus",
		"history:init-recorder",
		"analysis:init-service",
		"recovery:init-service",
		"auth:init-tokens",
		"agent:init-handler",
	}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count: got %d want %d", len(steps), len(want))
	}
	seen := map[string]bool{}
	for i, step := range steps {
		if step.ID != want[i] {
			t.Fatalf("step %d mismatch: got %s want %s", i, step.ID, want[i])
		}
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				t.Fatalf("step %s depends on later step %s", step.ID, dep)
			}
		}
		seen[step.ID] = true
	}
}

func TestExecuteInitGraph(t *testing.T) {
	state, err := initialise(context.Background(), testOptions(t, nil))
	if err != nil {
		t.Fatalf("initialise failed: %v", err)
	}
	defer state.close()

	if state.db == nil || state.history == nil {
		t.Fatal("storage and history should be initialised with sqlite")
	}
	if state.drugs == nil || state.vision == nil || state.recovery == nil || state.agent == nil {
		t.Fatalf("services missing: %+v", state)
	}
	if state.tokens != nil {
		t.Fatal("tokens created while auth is disabled")
	}
	if state.observabilityShutdown == nil {
		t.Fatal("observability shutdown hook not set")
	}
}

func TestExecuteInitStepsMissingDependency(t *testing.T) {
	steps := []initStep{{
		ID:        "b",
		DependsOn: []string{"a"},
		Execute:   func(context.Context, *appState) error { return nil },
	}}
	err := executeInitSteps(context.Background(), steps, &appState{})
	if !platformerrors.IsKind(err, platformerrors.KindBootstrap) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
	if !strings.Contains(err.Error(), "dependency a not satisfied") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecuteInitStepsWrapsUntypedErrors(t *testing.T) {
	steps := []initStep{{
		ID:      "vision:init-client",
		Kind:    platformerrors.KindVision,
		Execute: func(context.Context, *appState) error { return os.ErrNotExist },
	}}
	err := executeInitSteps(context.Background(), steps, &appState{})
	if platformerrors.KindOf(err) != platformerrors.KindVision {
		t.Fatalf("kind = %s, want vision", platformerrors.KindOf(err))
	}
}

func TestInitialiseRejectsBadConfig(t *testing.T) {
	_, err := initialise(context.Background(), testOptions(t, map[string]string{"VISION_PROVIDER": "carrier-pigeon"}))
	if !platformerrors.IsKind(err, platformerrors.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestBuildRouterServesHealthAndGuardsAPI(t *testing.T) {
	opts := testOptions(t, map[string]string{"AUTH_ENABLED": "true", "AUTH_SECRET": "smoke-secret"})
	state, err := initialise(context.Background(), opts)
	if err != nil {
		t.Fatalf("initialise failed: %v", err)
	}
	defer state.close()

	router, err := buildRouter(context.Background(), state)
	if err != nil {
		t.Fatalf("buildRouter: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("metrics without token = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusUnauthorized || state.ws == nil {
		t.Fatalf("websocket without token = %d, want 401", w.Code)
	}

	token, err := IssueToken(opts, "smoke", "api")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics with token = %d %s", w.Code, w.Body.String())
	}
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	logger, buf := platformtesting.SetupTestLogger(t)
	logBootstrapGraph(InitGraph(), logger)

	out := buf.String()
	for _, want := range []string{"config:load", "history:init-recorder", "storage:init-database, events:init-bus"} {
		if !strings.Contains(out, want) {
			t.Fatalf("graph log missing %q:\n%s", want, out)
		}
	}
}
