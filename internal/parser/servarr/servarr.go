// Package servarr adapts webhooks from the *arr media managers
// (Radarr, Sonarr, Prowlarr). One parser covers the whole family: the
// payloads share the eventType/instanceName envelope and differ only in
// which media node they carry.
package servarr

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
		BuiltInType: parser.TypeServarr,
		DisplayName: "Servarr",
		Description: "Media library events from Radarr, Sonarr and Prowlarr",
	}
}

// Validate requires the eventType/instanceName envelope plus at least one
// recognized media node. A plural "episodeFiles" key at any depth marks a
// bulk shape this parser does not understand and is rejected outright; only
// the singular "episodeFile" object is accepted.
func (p *Parser) Validate(ctx context.Context, payload parser.Payload, pctx parser.Context) bool {
	_ = ctx
	_ = pctx
	if payload == nil {
		return false
	}
	if payload.String("eventType") == "" || payload.String("instanceName") == "" {
		return false
	}
	if hasEpisodeFiles(map[string]any(payload)) {
		return false
	}
	if payload.Map("movie") != nil || payload.Map("series") != nil ||
		payload.Has("episodes") || payload.Map("indexer") != nil ||
		payload.Map("indexerStatus") != nil {
		return true
	}
	return isHealth(payload)
}

func hasEpisodeFiles(v any) bool {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			if k == "episodeFiles" {
				return true
			}
			if hasEpisodeFiles(val) {
				return true
			}
		}
	case []any:
		for _, val := range x {
			if hasEpisodeFiles(val) {
				return true
			}
		}
	}
	return false
}

func isHealth(payload parser.Payload) bool {
	return payload.String("message") != "" &&
		payload.String("level") != "" &&
		payload.String("type") != ""
}

func (p *Parser) Parse(ctx context.Context, payload parser.Payload, pctx parser.Context) (out notification.Message) {
	defer parser.Recover(p.Descriptor(), payload, notification.DeliveryCritical, &out, pctx.Log)
	_ = ctx

	eventType := payload.String("eventType")
	instance := payload.String("instanceName")

	switch {
	case payload.Map("movie") != nil:
		return movieMessage(payload, eventType, instance)
	case payload.Map("series") != nil:
		return seriesMessage(payload, eventType, instance)
	case isHealth(payload):
		return healthMessage(payload, instance)
	case payload.Map("indexer") != nil || payload.Map("indexerStatus") != nil:
		return indexerMessage(payload, eventType, instance)
	}

	// Unknown payload shape: still a normal outcome of the contract, not an
	// error. Emit a generic notification with the raw payload for context.
	return notification.Message{
		Title:        fmt.Sprintf("%s: %s", instance, eventType),
		Subtitle:     instance,
		Body:         "Unrecognized media event.\n\nRaw payload:\n" + payload.JSON(),
		DeliveryType: notification.DeliveryNormal,
	}
}

// eventSeverity is the per-event urgency table. Unknown events are plain
// notifications.
func eventSeverity(eventType string) notification.DeliveryType {
	switch strings.ToLower(eventType) {
	case "failed", "manualinteractionrequired":
		return notification.DeliveryCritical
	case "imported", "download", "downloadfolderimported", "grab":
		return notification.DeliveryNormal
	}
	return notification.DeliveryNormal
}

func movieMessage(payload parser.Payload, eventType, instance string) notification.Message {
	movie := payload.Map("movie")
	title := movie.String("title")
	year, hasYear := movie.Int("year")

	head := fmt.Sprintf("%s: %s", eventType, title)
	if hasYear && year > 0 {
		head = fmt.Sprintf("%s: %s (%d)", eventType, title, year)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Instance: %s", instance)
	if q := payload.Map("release").String("quality"); q != "" {
		fmt.Fprintf(&b, "\nQuality: %s", q)
	}
	if overview := movie.String("overview"); overview != "" {
		fmt.Fprintf(&b, "\n\n%s", overview)
	}

	return notification.Message{
		Title:        head,
		Subtitle:     instance,
		Body:         b.String(),
		DeliveryType: eventSeverity(eventType),
	}
}

func seriesMessage(payload parser.Payload, eventType, instance string) notification.Message {
	series := payload.Map("series")

	var b strings.Builder
	fmt.Fprintf(&b, "Instance: %s", instance)
	for _, e := range payload.Slice("episodes") {
		em, _ := e.(map[string]any)
		if em == nil {
			continue
		}
		ep := parser.Payload(em)
		season, _ := ep.Int("seasonNumber")
		num, _ := ep.Int("episodeNumber")
		fmt.Fprintf(&b, "\nS%02dE%02d %s", season, num, ep.String("title"))
	}
	if f := payload.Map("episodeFile"); f != nil {
		if q := f.Map("quality").String("quality"); q != "" {
			fmt.Fprintf(&b, "\nQuality: %s", q)
		} else if q := f.String("quality"); q != "" {
			fmt.Fprintf(&b, "\nQuality: %s", q)
		}
	}

	return notification.Message{
		Title:        fmt.Sprintf("%s: %s", eventType, series.String("title")),
		Subtitle:     instance,
		Body:         b.String(),
		DeliveryType: eventSeverity(eventType),
	}
}

func healthMessage(payload parser.Payload, instance string) notification.Message {
	level := strings.ToLower(payload.String("level"))

	dt := notification.DeliveryNormal
	if level == "error" {
		dt = notification.DeliveryCritical
	}

	return notification.Message{
		Title:        fmt.Sprintf("Health %s: %s", level, payload.String("type")),
		Subtitle:     instance,
		Body:         payload.String("message"),
		DeliveryType: dt,
	}
}

func indexerMessage(payload parser.Payload, eventType, instance string) notification.Message {
	name := payload.Map("indexer").String("name")
	if name == "" {
		name = payload.Map("indexerStatus").String("name")
	}

	return notification.Message{
		Title:        fmt.Sprintf("%s: %s", eventType, name),
		Subtitle:     instance,
		Body:         fmt.Sprintf("Instance: %s", instance),
		DeliveryType: eventSeverity(eventType),
	}
}

func (p *Parser) TestPayload() parser.Payload {
	return parser.Payload{
		"eventType":    "Download",
		"instanceName": "Radarr",
		"movie": map[string]any{
			"id":    42,
			"title": "The Matrix",
			"year":  1999,
		},
		"release": map[string]any{
			"quality": "Bluray-1080p",
		},
	}
}
