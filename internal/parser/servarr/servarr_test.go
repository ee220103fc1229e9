package servarr

import (
	"context"
	"strings"
	"testing"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
)

func moviePayload(eventType string) parser.Payload {
	return parser.Payload{
		"eventType":    eventType,
		"instanceName": "Radarr",
		"movie": map[string]any{
			"title": "The Matrix",
			"year":  1999,
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
		{name: "movie", payload: moviePayload("Download"), want: true},
		{name: "series", payload: parser.Payload{
			"eventType":    "Download",
			"instanceName": "Sonarr",
			"series":       map[string]any{"title": "Severance"},
			"episodes":     []any{},
		}, want: true},
		{name: "health", payload: parser.Payload{
			"eventType":    "Health",
			"instanceName": "Sonarr",
			"message":      "Indexer unreachable",
			"level":        "error",
			"type":         "IndexerStatusCheck",
		}, want: true},
		{name: "indexer", payload: parser.Payload{
			"eventType":    "Grab",
			"instanceName": "Prowlarr",
			"indexer":      map[string]any{"name": "NZBPlanet"},
		}, want: true},
		{name: "plural episodeFiles rejected", payload: parser.Payload{
			"eventType":    "Download",
			"instanceName": "Sonarr",
			"series":       map[string]any{"title": "Severance"},
			"episodeFiles": []any{map[string]any{}},
		}, want: false},
		{name: "nested episodeFiles rejected", payload: parser.Payload{
			"eventType":    "Download",
			"instanceName": "Sonarr",
			"series": map[string]any{
				"title":        "Severance",
				"episodeFiles": []any{map[string]any{}},
			},
		}, want: false},
		{name: "episodeFiles inside array rejected", payload: parser.Payload{
			"eventType":    "Download",
			"instanceName": "Sonarr",
			"series":       map[string]any{"title": "Severance"},
			"episodes": []any{
				map[string]any{"episodeFiles": []any{}},
			},
		}, want: false},
		{name: "no envelope", payload: parser.Payload{
			"movie": map[string]any{"title": "x"},
		}, want: false},
		{name: "envelope without media node", payload: parser.Payload{
			"eventType":    "Download",
			"instanceName": "Radarr",
		}, want: false},
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

func TestMovieMessage(t *testing.T) {
	t.Parallel()
	m := New().Parse(context.Background(), moviePayload("Download"), parser.Context{})
	if want := "Download: The Matrix (1999)"; m.Title != want {
		t.Fatalf("Title = %q, want %q", m.Title, want)
	}
	if m.Subtitle != "Radarr" {
		t.Fatalf("Subtitle = %q", m.Subtitle)
	}
	if m.DeliveryType != notification.DeliveryNormal {
		t.Fatalf("DeliveryType = %s", m.DeliveryType)
	}
}

func TestFailedEventPages(t *testing.T) {
	t.Parallel()
	m := New().Parse(context.Background(), moviePayload("Failed"), parser.Context{})
	if want := "Failed: The Matrix (1999)"; m.Title != want {
		t.Fatalf("Title = %q, want %q", m.Title, want)
	}
	if m.DeliveryType != notification.DeliveryCritical {
		t.Fatalf("DeliveryType = %s, want CRITICAL", m.DeliveryType)
	}
}

func TestManualInteractionPages(t *testing.T) {
	t.Parallel()
	m := New().Parse(context.Background(), moviePayload("ManualInteractionRequired"), parser.Context{})
	if m.DeliveryType != notification.DeliveryCritical {
		t.Fatalf("DeliveryType = %s, want CRITICAL", m.DeliveryType)
	}
}

func TestHealthSeverity(t *testing.T) {
	t.Parallel()
	p := New()
	ctx := context.Background()

	payload := func(level string) parser.Payload {
		return parser.Payload{
			"eventType":    "Health",
			"instanceName": "Sonarr",
			"message":      "Indexer unreachable",
			"level":        level,
			"type":         "IndexerStatusCheck",
		}
	}

	m := p.Parse(ctx, payload("error"), parser.Context{})
	if m.DeliveryType != notification.DeliveryCritical {
		t.Fatalf("error level DeliveryType = %s, want CRITICAL", m.DeliveryType)
	}
	if want := "Health error: IndexerStatusCheck"; m.Title != want {
		t.Fatalf("Title = %q, want %q", m.Title, want)
	}

	m = p.Parse(ctx, payload("warning"), parser.Context{})
	if m.DeliveryType != notification.DeliveryNormal {
		t.Fatalf("warning level DeliveryType = %s, want NORMAL", m.DeliveryType)
	}
}

func TestSeriesEpisodeList(t *testing.T) {
	t.Parallel()
	m := New().Parse(context.Background(), parser.Payload{
		"eventType":    "Download",
		"instanceName": "Sonarr",
		"series":       map[string]any{"title": "Severance"},
		"episodes": []any{
			map[string]any{"seasonNumber": 2, "episodeNumber": 3, "title": "Who Is Alive?"},
		},
		"episodeFile": map[string]any{
			"quality": map[string]any{"quality": "WEBDL-1080p"},
		},
	}, parser.Context{})
	if want := "Download: Severance"; m.Title != want {
		t.Fatalf("Title = %q, want %q", m.Title, want)
	}
	if !strings.Contains(m.Body, "S02E03 Who Is Alive?") {
		t.Fatalf("Body missing episode line: %q", m.Body)
	}
	if !strings.Contains(m.Body, "Quality: WEBDL-1080p") {
		t.Fatalf("Body missing quality: %q", m.Body)
	}
}

func TestUnknownShapeFallsBack(t *testing.T) {
	t.Parallel()
	// Validate would reject this, but Parse must still produce something
	// sensible when driven directly.
	m := New().Parse(context.Background(), parser.Payload{
		"eventType":    "ApplicationUpdate",
		"instanceName": "Radarr",
	}, parser.Context{})
	if m.Title != "Radarr: ApplicationUpdate" {
		t.Fatalf("Title = %q", m.Title)
	}
	if !strings.Contains(m.Body, "Unrecognized media event.") {
		t.Fatalf("Body = %q", m.Body)
	}
}
