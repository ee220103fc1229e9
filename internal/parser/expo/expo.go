// Package expo adapts Expo EAS build and submit webhooks.
//
// Expo signs each delivery with an HMAC-SHA1 of the raw JSON body in the
// expo-signature header ("sha1=<hex>"). The per-user secret comes from the
// settings store; when no secret is configured the check is skipped.
package expo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/signature"
	"github.com/Zentik-notifier/backend-sub001/internal/settings"
)

const signatureHeader = "expo-signature"

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Descriptor() parser.Descriptor {
	return parser.Descriptor{
		BuiltInType: parser.TypeExpo,
		DisplayName: "Expo",
		Description: "EAS build and submission results from Expo",
	}
}

func (p *Parser) Validate(ctx context.Context, payload parser.Payload, pctx parser.Context) bool {
	if payload == nil {
		return false
	}
	if payload.String("id") == "" {
		return false
	}
	switch payload.String("platform") {
	case "ios", "android":
	default:
		return false
	}
	switch payload.String("status") {
	case "finished", "errored", "canceled":
	default:
		return false
	}
	if !isBuild(payload) && !isSubmit(payload) {
		return false
	}

	secret, _ := pctx.Setting(ctx, settings.KeyExpoWebhookSecret)
	return signature.Verify(signature.SHA1, pctx.RawBody, secret, pctx.Header(signatureHeader))
}

func isBuild(payload parser.Payload) bool {
	return payload.Has("buildDetailsPageUrl") || payload.Has("artifacts") || payload.Map("metadata") != nil
}

func isSubmit(payload parser.Payload) bool {
	return payload.Has("submissionDetailsPageUrl") || payload.Map("submissionInfo") != nil
}

func (p *Parser) Parse(ctx context.Context, payload parser.Payload, pctx parser.Context) (out notification.Message) {
	defer parser.Recover(p.Descriptor(), payload, notification.DeliveryNormal, &out, pctx.Log)
	_ = ctx

	status := payload.String("status")
	platform := payload.String("platform")

	kind := "build"
	detailsURL := payload.String("buildDetailsPageUrl")
	if isSubmit(payload) && !isBuild(payload) {
		kind = "submission"
		detailsURL = payload.String("submissionDetailsPageUrl")
	}

	appName := payload.Map("metadata").String("appName")
	if appName == "" {
		appName = payload.String("projectName")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Platform: %s\nStatus: %s", platform, status)
	if profile := payload.Map("metadata").String("buildProfile"); profile != "" {
		fmt.Fprintf(&b, "\nProfile: %s", profile)
	}
	if errMsg := payload.Map("error").String("message"); errMsg != "" {
		fmt.Fprintf(&b, "\nError: %s", errMsg)
	}

	title := fmt.Sprintf("Expo %s %s %s", platform, kind, status)
	if appName != "" {
		title = fmt.Sprintf("%s: %s %s %s", appName, platform, kind, status)
	}

	m := notification.Message{
		Title:        title,
		Subtitle:     appName,
		Body:         b.String(),
		DeliveryType: statusSeverity(status),
	}
	if detailsURL != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: detailsURL}
	}
	return m
}

func statusSeverity(status string) notification.DeliveryType {
	if status == "errored" {
		return notification.DeliveryCritical
	}
	return notification.DeliveryNormal
}

func (p *Parser) TestPayload() parser.Payload {
	return parser.Payload{
		"id":       "8a13cbbf-5bf6-4f64-9a3a-2d0f8e1b7f10",
		"platform": "android",
		"status":   "finished",
		"metadata": map[string]any{
			"appName":      "zentik-mobile",
			"buildProfile": "production",
		},
		"artifacts": map[string]any{
			"buildUrl": "https://expo.dev/artifacts/eas/example.aab",
		},
		"buildDetailsPageUrl": "https://expo.dev/accounts/example/projects/zentik-mobile/builds/8a13cbbf",
	}
}
