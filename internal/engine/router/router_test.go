package router

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/internal/pkg/assignment"
	"github.com/arcentrix/storyflow/internal/pkg/monitor"
	"github.com/arcentrix/storyflow/internal/pkg/notify"
	"github.com/arcentrix/storyflow/internal/pkg/orchestrator"
	"github.com/arcentrix/storyflow/internal/pkg/recovery"
	"github.com/arcentrix/storyflow/internal/pkg/workflow"
	"github.com/arcentrix/storyflow/pkg/database"
	"github.com/arcentrix/storyflow/pkg/dedup"
	"github.com/arcentrix/storyflow/pkg/http"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/arcentrix/storyflow/pkg/scm/scmtest"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "topsecret"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := database.NewManager(database.Database{
		Driver: database.DriverSQLite,
		SQLite: database.SQLiteConfig{Path: "file::memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repo.AutoMigrate(context.Background(), db))
	repos := repo.NewRepositories(db)

	m := metrics.NewMetrics()
	issues := scmtest.NewIssues()
	recoveryMgr := recovery.NewManager(repos.Recovery, recovery.Conf{})
	mon := monitor.New(repos.Pipeline, nil, m, monitor.Conf{}, monitor.WithRecovery(recoveryMgr))
	notifier, err := notify.NewNotifier(issues, notify.Conf{})
	require.NoError(t, err)
	assigner := assignment.NewEngine(assignment.Conf{}, repos.Assignment)
	processor := workflow.NewProcessor(workflow.Conf{}, issues, orchestrator.New(orchestrator.Conf{}), assigner, m)

	services := service.NewServices(service.WebhookConf{Secret: testSecret}, repos, mon, notifier,
		processor, recoveryMgr, assigner, dedup.NewMemoryStore(dedup.DefaultTTL), m)
	rt := NewRouter(http.Http{}, metrics.Conf{Enabled: true}, services, m)
	return rt.Router()
}

func do(t *testing.T, app *fiber.App, method, target, body string, headers map[string]string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

// TestWebhookRoute verifies status codes for rejected and accepted deliveries.
func TestWebhookRoute(t *testing.T) {
	app := newTestApp(t)

	status, _ := do(t, app, "POST", "/webhook", `{"action":"opened"}`,
		map[string]string{"X-Hub-Signature-256": "sha256=00"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	bad := `{not json`
	status, _ = do(t, app, "POST", "/webhook", bad,
		map[string]string{"X-Hub-Signature-256": scm.SignHmacSha256Hex([]byte(bad), testSecret)})
	assert.Equal(t, fiber.StatusBadRequest, status)

	ok := `{"action":"created","repository":{"full_name":"o/r"}}`
	status, body := do(t, app, "POST", "/webhook", ok,
		map[string]string{"X-Hub-Signature-256": scm.SignHmacSha256Hex([]byte(ok), testSecret)})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"status":"ignored"`)
	assert.Contains(t, body, `"reason":"unsupported event"`)
}

// TestHealthAndMetrics verifies the operational endpoints.
func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"status":"healthy"`)

	status, body = do(t, app, "GET", "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
}

// TestDashboardRoutes verifies every dashboard answers with the envelope.
func TestDashboardRoutes(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{
		"/api/v1/dashboard/failures?days=3",
		"/api/v1/dashboard/retries",
		"/api/v1/dashboard/recoveries?repository=o/r",
		"/api/v1/dashboard/assignments",
	} {
		status, body := do(t, app, "GET", path, "", nil)
		assert.Equal(t, fiber.StatusOK, status, path)
		assert.Contains(t, body, `"code":200`, path)
		assert.Contains(t, body, `"detail":`, path)
	}
}

// TestStoryRoutes verifies linking and reading a story.
func TestStoryRoutes(t *testing.T) {
	app := newTestApp(t)

	status, _ := do(t, app, "POST", "/api/v1/stories/links", `{"storyId":"story_r01"}`, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := do(t, app, "POST", "/api/v1/stories/links",
		`{"storyId":"story_r01","repository":"o/r","issueNumber":4,"title":"login"}`, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"storyId":"story_r01"`)

	status, body = do(t, app, "GET", "/api/v1/stories/story_r01", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"status":"draft"`)

	status, _ = do(t, app, "GET", "/api/v1/stories/story_none", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
