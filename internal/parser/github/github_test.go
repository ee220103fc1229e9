package github

import (
	"context"
	"strings"
	"testing"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/settings"
)

func pushPayload(n int) parser.Payload {
	commits := make([]any, 0, n)
	for i := 0; i < n; i++ {
		commits = append(commits, map[string]any{
			"message": "change something",
			"author":  map[string]any{"name": "octocat"},
		})
	}
	return parser.Payload{
		"ref":        "refs/heads/main",
		"repository": map[string]any{"full_name": "octocat/hello-world"},
		"pusher":     map[string]any{"name": "octocat"},
		"sender":     map[string]any{"login": "octocat"},
		"commits":    commits,
		"compare":    "https://github.com/octocat/hello-world/compare/abc...def",
	}
}

func workflowRunPayload(conclusion, status string) parser.Payload {
	return parser.Payload{
		"repository": map[string]any{"full_name": "octocat/hello-world"},
		"sender":     map[string]any{"login": "octocat"},
		"workflow_run": map[string]any{
			"name":        "CI",
			"head_branch": "main",
			"conclusion":  conclusion,
			"status":      status,
			"html_url":    "https://github.com/octocat/hello-world/actions/runs/1",
		},
	}
}

func TestValidateShape(t *testing.T) {
	t.Parallel()
	p := New()
	ctx := context.Background()

	tests := []struct {
		name    string
		payload parser.Payload
		want    bool
	}{
		{name: "push", payload: pushPayload(1), want: true},
		{name: "ping via hook", payload: parser.Payload{
			"zen":    "Design for failure.",
			"hook":   map[string]any{"id": 1},
			"sender": map[string]any{"login": "octocat"},
		}, want: true},
		{name: "no repository or hook", payload: parser.Payload{
			"sender": map[string]any{"login": "octocat"},
		}, want: false},
		{name: "no sender", payload: parser.Payload{
			"repository": map[string]any{"full_name": "a/b"},
		}, want: false},
		{name: "empty", payload: parser.Payload{}, want: false},
		{name: "nil", payload: nil, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Validate(ctx, tt.payload, parser.Context{}); got != tt.want {
				t.Fatalf("Validate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPushMessage(t *testing.T) {
	t.Parallel()
	p := New()
	ctx := context.Background()

	m := p.Parse(ctx, pushPayload(2), parser.Context{})
	if want := "octocat/hello-world: 2 commits pushed"; m.Title != want {
		t.Fatalf("Title = %q, want %q", m.Title, want)
	}
	if !strings.Contains(m.Body, "Commits: 2") {
		t.Fatalf("Body missing commit count: %q", m.Body)
	}
	if !strings.Contains(m.Body, "Branch: main") {
		t.Fatalf("Body missing branch: %q", m.Body)
	}
	if m.TapAction == nil || m.TapAction.Type != notification.ActionNavigate {
		t.Fatal("push message has no compare tap action")
	}
	if m.DeliveryType != notification.DeliveryNormal {
		t.Fatalf("DeliveryType = %s", m.DeliveryType)
	}
}

func TestPushSingularCommit(t *testing.T) {
	t.Parallel()
	m := New().Parse(context.Background(), pushPayload(1), parser.Context{})
	if want := "octocat/hello-world: 1 commit pushed"; m.Title != want {
		t.Fatalf("Title = %q, want %q", m.Title, want)
	}
}

func TestWorkflowSeverity(t *testing.T) {
	t.Parallel()
	p := New()
	ctx := context.Background()

	tests := []struct {
		name       string
		conclusion string
		status     string
		want       notification.DeliveryType
	}{
		{name: "failure pages", conclusion: "failure", status: "completed", want: notification.DeliveryCritical},
		{name: "success notifies", conclusion: "success", status: "completed", want: notification.DeliveryNormal},
		{name: "in progress is silent", conclusion: "", status: "in_progress", want: notification.DeliverySilent},
		{name: "queued is silent", conclusion: "", status: "queued", want: notification.DeliverySilent},
		{name: "cancelled is normal", conclusion: "cancelled", status: "completed", want: notification.DeliveryNormal},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := p.Parse(ctx, workflowRunPayload(tt.conclusion, tt.status), parser.Context{})
			if m.DeliveryType != tt.want {
				t.Fatalf("DeliveryType = %s, want %s", m.DeliveryType, tt.want)
			}
		})
	}
}

func TestEventsFilter(t *testing.T) {
	t.Parallel()
	p := New()
	ctx := context.Background()

	store := settings.NewMemory()
	if err := store.PutSetting(ctx, "u1", settings.KeyGithubEventsFilter, settings.FilterAllFailure); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	pctx := parser.Context{UserID: "u1", Settings: store}

	if p.Validate(ctx, workflowRunPayload("success", "completed"), pctx) {
		t.Fatal("ALL_FAILURE filter let a success through")
	}
	if !p.Validate(ctx, workflowRunPayload("failure", "completed"), pctx) {
		t.Fatal("ALL_FAILURE filter dropped a failure")
	}
	// Events without a conclusion are not CI outcomes and pass the filter.
	if !p.Validate(ctx, pushPayload(1), pctx) {
		t.Fatal("filter dropped a non-CI event")
	}
	if !p.Validate(ctx, workflowRunPayload("", "in_progress"), pctx) {
		t.Fatal("filter dropped an in-flight run")
	}
}

func TestEventsFilterAllSuccess(t *testing.T) {
	t.Parallel()
	p := New()
	ctx := context.Background()

	store := settings.NewMemory()
	if err := store.PutSetting(ctx, "u1", settings.KeyGithubEventsFilter, settings.FilterAllSuccess); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	pctx := parser.Context{UserID: "u1", Settings: store}

	if !p.Validate(ctx, workflowRunPayload("success", "completed"), pctx) {
		t.Fatal("ALL_SUCCESS filter dropped a success")
	}
	if p.Validate(ctx, workflowRunPayload("failure", "completed"), pctx) {
		t.Fatal("ALL_SUCCESS filter let a failure through")
	}
}

func TestHeaderDrivenEventKind(t *testing.T) {
	t.Parallel()
	p := New()
	ctx := context.Background()

	// Shape says push, header says ping; the header wins.
	payload := pushPayload(1)
	payload["zen"] = "Keep it logically awesome."
	pctx := parser.Context{Headers: map[string]string{"X-GitHub-Event": "ping"}}

	m := p.Parse(ctx, payload, pctx)
	if !strings.HasPrefix(m.Title, "GitHub: webhook configured") {
		t.Fatalf("Title = %q, want ping message", m.Title)
	}
}

func TestPullRequestMerged(t *testing.T) {
	t.Parallel()
	p := New()
	m := p.Parse(context.Background(), parser.Payload{
		"action":     "closed",
		"repository": map[string]any{"full_name": "octocat/hello-world"},
		"sender":     map[string]any{"login": "octocat"},
		"pull_request": map[string]any{
			"number":   7,
			"title":    "Add retry",
			"merged":   true,
			"html_url": "https://github.com/octocat/hello-world/pull/7",
		},
	}, parser.Context{})
	if want := "octocat/hello-world: PR #7 merged"; m.Title != want {
		t.Fatalf("Title = %q, want %q", m.Title, want)
	}
}
