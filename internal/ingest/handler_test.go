package ingest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Zentik-notifier/backend-sub001/internal/eventbus"
	"github.com/Zentik-notifier/backend-sub001/internal/ingest"
	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/github"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/railway"
	"github.com/Zentik-notifier/backend-sub001/internal/settings"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

type capture struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (c *capture) dispatch(_ context.Context, _ string, m notification.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func newTestServer(t *testing.T) (http.Handler, *capture, settings.Store) {
	t.Helper()
	reg := parser.NewRegistry()
	if err := reg.Register(github.New(), railway.New()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store := settings.NewMemory()
	sink := &capture{}
	srv := ingest.NewServer(ingest.Config{MaxBodyBytes: 1 << 16},
		logx.Nop(), reg, store, sink.dispatch, eventbus.New())
	return srv.Handler(), sink, store
}

const railwayBody = `{
	"type": "DEPLOY",
	"status": "SUCCESS",
	"project": {"id": "p1", "name": "api-backend"},
	"environment": {"id": "e1", "name": "production"}
}`

func TestPostMessageAccepted(t *testing.T) {
	t.Parallel()
	h, sink, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/railway", strings.NewReader(railwayBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID           string `json:"id"`
		BuiltInType  string `json:"builtInType"`
		Title        string `json:"title"`
		DeliveryType string `json:"deliveryType"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if resp.ID == "" || resp.BuiltInType != "RAILWAY" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.DeliveryType != "NORMAL" {
		t.Fatalf("deliveryType = %s", resp.DeliveryType)
	}
	if sink.count() != 1 {
		t.Fatalf("dispatched %d messages, want 1", sink.count())
	}
}

// Source matching is case-insensitive.
func TestPostMessageSourceCaseInsensitive(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/Railway", strings.NewReader(railwayBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostMessageUnknownSource(t *testing.T) {
	t.Parallel()
	h, sink, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/gitlab", strings.NewReader(railwayBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if sink.count() != 0 {
		t.Fatal("rejected request was dispatched")
	}
}

func TestPostMessageRejectedByParser(t *testing.T) {
	t.Parallel()
	h, sink, _ := newTestServer(t)

	// Valid JSON object, wrong shape for Railway.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/railway", strings.NewReader(`{"hello":"world"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if sink.count() != 0 {
		t.Fatal("rejected payload was dispatched")
	}
}

func TestPostMessageNonObjectBody(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestServer(t)

	for _, body := range []string{`[1,2]`, `"str"`, ``, `{broken`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/railway", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestPostMessageAutoDetect(t *testing.T) {
	t.Parallel()
	h, sink, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/auto", strings.NewReader(railwayBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		BuiltInType string `json:"builtInType"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.BuiltInType != "RAILWAY" {
		t.Fatalf("auto-detected %s, want RAILWAY", resp.BuiltInType)
	}
	if sink.count() != 1 {
		t.Fatalf("dispatched %d, want 1", sink.count())
	}
}

func TestPostMessageAutoNoMatch(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/auto", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostMessageBodyTooLarge(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestServer(t)

	big := `{"pad":"` + strings.Repeat("x", 1<<17) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/railway", strings.NewReader(big))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestListParsers(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/parsers", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var ds []parser.Descriptor
	if err := json.Unmarshal(rec.Body.Bytes(), &ds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("parsers = %d, want 2", len(ds))
	}
}

func TestPutAndDeleteSetting(t *testing.T) {
	t.Parallel()
	h, _, store := newTestServer(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPut,
		"/api/v1/users/u1/settings/github_events_filter",
		strings.NewReader(`{"value":"ALL_FAILURE"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}

	v, ok, err := store.GetSetting(ctx, "u1", settings.KeyGithubEventsFilter)
	if err != nil || !ok || v != "ALL_FAILURE" {
		t.Fatalf("stored setting = %q, %v, %v", v, ok, err)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/users/u1/settings/github_events_filter", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	if _, ok, _ := store.GetSetting(ctx, "u1", settings.KeyGithubEventsFilter); ok {
		t.Fatal("setting survived delete")
	}
}

func TestPutSettingBadBody(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut,
		"/api/v1/users/u1/settings/github_events_filter",
		strings.NewReader(`{"nope":true}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

// The per-user settings wired through the ingest path gate validation, so a
// configured filter changes the verdict end to end.
func TestSettingsReachParsers(t *testing.T) {
	t.Parallel()
	h, sink, store := newTestServer(t)
	ctx := context.Background()

	if err := store.PutSetting(ctx, "u1", settings.KeyGithubEventsFilter, settings.FilterAllFailure); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}

	body := `{
		"repository": {"full_name": "octocat/hello-world"},
		"sender": {"login": "octocat"},
		"workflow_run": {"name": "CI", "status": "completed", "conclusion": "success"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/github", strings.NewReader(body))
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("filtered success: status = %d, want 400", rec.Code)
	}
	if sink.count() != 0 {
		t.Fatal("filtered message was dispatched")
	}
}
