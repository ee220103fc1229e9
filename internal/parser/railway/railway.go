// Package railway adapts Railway deployment webhooks. Both the historical
// flat shape and the newer resource.*-nested shape are accepted.
package railway

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Descriptor() parser.Descriptor {
	return parser.Descriptor{
		BuiltInType: parser.TypeRailway,
		DisplayName: "Railway",
		Description: "Deployment status events from Railway",
	}
}

// root returns the object holding project/environment/deployment: the
// payload itself for the flat shape, the resource node for the nested one.
func root(payload parser.Payload) parser.Payload {
	if res := payload.Map("resource"); res != nil && res.Map("project") != nil {
		return res
	}
	return payload
}

func eventType(payload parser.Payload) string {
	if t := payload.String("type"); t != "" {
		return t
	}
	return payload.String("event")
}

func (p *Parser) Validate(ctx context.Context, payload parser.Payload, pctx parser.Context) bool {
	_ = ctx
	_ = pctx
	if payload == nil || eventType(payload) == "" {
		return false
	}
	r := root(payload)
	project := r.Map("project")
	env := r.Map("environment")
	if project == nil || project.String("id") == "" || project.String("name") == "" {
		return false
	}
	return env != nil && env.String("id") != "" && env.String("name") != ""
}

func (p *Parser) Parse(ctx context.Context, payload parser.Payload, pctx parser.Context) (out notification.Message) {
	defer parser.Recover(p.Descriptor(), payload, notification.DeliveryNormal, &out, pctx.Log)
	_ = ctx

	r := root(payload)
	project := r.Map("project").String("name")
	env := r.Map("environment").String("name")
	status := payload.String("status")
	if status == "" {
		status = r.Map("deployment").String("status")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nEnvironment: %s", project, env)
	if status != "" {
		fmt.Fprintf(&b, "\nStatus: %s", status)
	}
	if service := r.Map("service").String("name"); service != "" {
		fmt.Fprintf(&b, "\nService: %s", service)
	}

	title := fmt.Sprintf("Railway %s: %s/%s", eventType(payload), project, env)
	if status != "" {
		title = fmt.Sprintf("Railway %s %s: %s/%s", eventType(payload), status, project, env)
	}

	return notification.Message{
		Title:        title,
		Subtitle:     project,
		Body:         b.String(),
		DeliveryType: statusSeverity(status),
	}
}

// statusSeverity: anything that looks failed pages, everything else is a
// plain notification.
func statusSeverity(status string) notification.DeliveryType {
	up := strings.ToUpper(status)
	if strings.Contains(up, "FAILED") || strings.Contains(up, "ERROR") {
		return notification.DeliveryCritical
	}
	return notification.DeliveryNormal
}

func (p *Parser) TestPayload() parser.Payload {
	return parser.Payload{
		"type":   "DEPLOY",
		"status": "SUCCESS",
		"project": map[string]any{
			"id":   "a9d14d7c-6f3e-4c9a-9d9f-0a6f6d7f5f21",
			"name": "api-backend",
		},
		"environment": map[string]any{
			"id":   "f0b9b6f4-29e9-4a77-bf0a-b2c0a9f4f111",
			"name": "production",
		},
		"deployment": map[string]any{
			"id":     "6cb8f2fc-3c33-4e2d-8a61-8b6c8a111111",
			"status": "SUCCESS",
		},
	}
}
