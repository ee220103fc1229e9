// Package github adapts GitHub webhook events (push, PRs, issues, releases,
// workflow runs/jobs, ping, star, fork).
package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/settings"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Descriptor() parser.Descriptor {
	return parser.Descriptor{
		BuiltInType: parser.TypeGithub,
		DisplayName: "GitHub",
		Description: "Repository and CI events delivered by GitHub webhooks",
	}
}

// Validate accepts any payload carrying a repository (or, for ping events,
// the hook object) plus a sender. When the user configured an events filter,
// CI events with a conclusion are additionally gated here so a filtered
// event never reaches message construction.
func (p *Parser) Validate(ctx context.Context, payload parser.Payload, pctx parser.Context) bool {
	if payload == nil {
		return false
	}
	if payload.Map("repository") == nil && payload.Map("hook") == nil {
		return false
	}
	if payload.Map("sender") == nil {
		return false
	}

	if filter, ok := pctx.Setting(ctx, settings.KeyGithubEventsFilter); ok {
		if c := conclusion(payload); c != "" {
			switch strings.ToUpper(strings.TrimSpace(filter)) {
			case settings.FilterAllSuccess:
				return c == "success"
			case settings.FilterAllFailure:
				return c == "failure"
			}
		}
	}
	return true
}

func (p *Parser) Parse(ctx context.Context, payload parser.Payload, pctx parser.Context) (out notification.Message) {
	defer parser.Recover(p.Descriptor(), payload, notification.DeliveryNormal, &out, pctx.Log)
	_ = ctx

	repo := payload.Map("repository").String("full_name")
	if repo == "" {
		repo = payload.Map("repository").String("name")
	}
	sender := payload.Map("sender").String("login")

	switch eventKind(payload, pctx) {
	case "ping":
		return pingMessage(payload, repo)
	case "push":
		return pushMessage(payload, repo, sender)
	case "pull_request":
		return prMessage(payload, repo, sender)
	case "issues":
		return issueMessage(payload, repo, sender)
	case "release":
		return releaseMessage(payload, repo, sender)
	case "workflow_run":
		return workflowRunMessage(payload, repo)
	case "workflow_job":
		return workflowJobMessage(payload, repo)
	case "star":
		return simpleMessage(fmt.Sprintf("%s: starred by %s", repo, sender), repo)
	case "fork":
		forkee := payload.Map("forkee").String("full_name")
		return simpleMessage(fmt.Sprintf("%s: forked to %s", repo, forkee), repo)
	}

	title := repo
	if title == "" {
		title = "GitHub event"
	} else {
		title = repo + ": event received"
	}
	m := simpleMessage(title, repo)
	m.Body = "Unrecognized GitHub event.\n\nRaw payload:\n" + payload.JSON()
	return m
}

func (p *Parser) TestPayload() parser.Payload {
	return parser.Payload{
		"ref": "refs/heads/main",
		"repository": map[string]any{
			"full_name": "octocat/hello-world",
			"name":      "hello-world",
			"html_url":  "https://github.com/octocat/hello-world",
		},
		"pusher": map[string]any{"name": "octocat"},
		"sender": map[string]any{"login": "octocat"},
		"commits": []any{
			map[string]any{"message": "Fix flaky retry test", "author": map[string]any{"name": "octocat"}},
			map[string]any{"message": "Bump deps", "author": map[string]any{"name": "octocat"}},
		},
		"compare": "https://github.com/octocat/hello-world/compare/abc...def",
	}
}

// eventKind detects the webhook event, preferring the X-GitHub-Event header
// when the transport preserved it and falling back to shape sniffing.
func eventKind(payload parser.Payload, pctx parser.Context) string {
	if ev := pctx.Header("X-GitHub-Event"); ev != "" {
		return ev
	}
	switch {
	case payload.Has("zen") && payload.Map("hook") != nil:
		return "ping"
	case payload.Map("workflow_job") != nil:
		return "workflow_job"
	case payload.Map("workflow_run") != nil:
		return "workflow_run"
	case payload.Has("commits") && payload.Map("pusher") != nil:
		return "push"
	case payload.Map("pull_request") != nil && payload.Has("action"):
		return "pull_request"
	case payload.Map("issue") != nil && payload.Has("action"):
		return "issues"
	case payload.Map("release") != nil && payload.Has("action"):
		return "release"
	case payload.Map("forkee") != nil:
		return "fork"
	case payload.Has("starred_at"):
		return "star"
	}
	return ""
}

// conclusion extracts the CI conclusion, empty for non-CI events and for
// runs still in flight.
func conclusion(payload parser.Payload) string {
	for _, key := range []string{"workflow_run", "workflow_job", "check_run"} {
		if node := payload.Map(key); node != nil {
			return node.String("conclusion")
		}
	}
	return ""
}

// ciSeverity implements the CI/build severity rules: hard failures page,
// successes notify, transient states stay silent.
func ciSeverity(conclusion, status string) notification.DeliveryType {
	switch conclusion {
	case "failure":
		return notification.DeliveryCritical
	case "success":
		return notification.DeliveryNormal
	}
	switch status {
	case "queued", "in_progress", "waiting", "pending", "requested":
		return notification.DeliverySilent
	}
	return notification.DeliveryNormal
}

func simpleMessage(title, subtitle string) notification.Message {
	return notification.Message{
		Title:        title,
		Subtitle:     subtitle,
		DeliveryType: notification.DeliveryNormal,
	}
}

func pingMessage(payload parser.Payload, repo string) notification.Message {
	target := repo
	if target == "" {
		target = payload.Map("organization").String("login")
	}
	m := simpleMessage(fmt.Sprintf("GitHub: webhook configured for %s", target), repo)
	m.Body = payload.String("zen")
	return m
}

func pushMessage(payload parser.Payload, repo, sender string) notification.Message {
	commits := payload.Slice("commits")
	n := len(commits)

	noun := "commits"
	if n == 1 {
		noun = "commit"
	}

	branch := strings.TrimPrefix(payload.String("ref"), "refs/heads/")

	var b strings.Builder
	fmt.Fprintf(&b, "Branch: %s\nCommits: %d", branch, n)
	for _, c := range commits {
		cm, _ := c.(map[string]any)
		if cm == nil {
			continue
		}
		commit := parser.Payload(cm)
		msg := firstLine(commit.String("message"))
		author := commit.Map("author").String("name")
		if author != "" {
			fmt.Fprintf(&b, "\n• %s (%s)", msg, author)
		} else {
			fmt.Fprintf(&b, "\n• %s", msg)
		}
	}

	m := notification.Message{
		Title:        fmt.Sprintf("%s: %d %s pushed", repo, n, noun),
		Subtitle:     sender,
		Body:         b.String(),
		DeliveryType: notification.DeliveryNormal,
	}
	if compare := payload.String("compare"); compare != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: compare}
	}
	return m
}

func prMessage(payload parser.Payload, repo, sender string) notification.Message {
	pr := payload.Map("pull_request")
	action := payload.String("action")
	num, _ := pr.Int("number")
	if action == "closed" && pr.Bool("merged") {
		action = "merged"
	}

	m := simpleMessage(fmt.Sprintf("%s: PR #%d %s", repo, num, action), sender)
	m.Body = pr.String("title")
	if url := pr.String("html_url"); url != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: url}
	}
	return m
}

func issueMessage(payload parser.Payload, repo, sender string) notification.Message {
	issue := payload.Map("issue")
	num, _ := issue.Int("number")

	m := simpleMessage(fmt.Sprintf("%s: issue #%d %s", repo, num, payload.String("action")), sender)
	m.Body = issue.String("title")
	if url := issue.String("html_url"); url != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: url}
	}
	return m
}

func releaseMessage(payload parser.Payload, repo, sender string) notification.Message {
	rel := payload.Map("release")
	tag := rel.String("tag_name")

	m := simpleMessage(fmt.Sprintf("%s: release %s %s", repo, tag, payload.String("action")), sender)
	m.Body = firstLine(rel.String("name"))
	if url := rel.String("html_url"); url != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: url}
	}
	return m
}

func workflowRunMessage(payload parser.Payload, repo string) notification.Message {
	run := payload.Map("workflow_run")
	name := run.String("name")
	concl := run.String("conclusion")
	status := run.String("status")

	outcome := concl
	if outcome == "" {
		outcome = status
	}

	m := notification.Message{
		Title:        fmt.Sprintf("%s: workflow %s %s", repo, name, outcome),
		Subtitle:     run.String("head_branch"),
		Body:         fmt.Sprintf("Status: %s", status),
		DeliveryType: ciSeverity(concl, status),
	}
	if concl != "" {
		m.Body = fmt.Sprintf("Status: %s\nConclusion: %s", status, concl)
	}
	if url := run.String("html_url"); url != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: url}
	}
	return m
}

func workflowJobMessage(payload parser.Payload, repo string) notification.Message {
	job := payload.Map("workflow_job")
	concl := job.String("conclusion")
	status := job.String("status")

	outcome := concl
	if outcome == "" {
		outcome = status
	}

	m := notification.Message{
		Title:        fmt.Sprintf("%s: job %s %s", repo, job.String("name"), outcome),
		Subtitle:     job.String("workflow_name"),
		DeliveryType: ciSeverity(concl, status),
	}
	if url := job.String("html_url"); url != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: url}
	}
	return m
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
