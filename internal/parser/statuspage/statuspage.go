// Package statuspage adapts Atlassian Statuspage webhooks.
package statuspage

import (
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/statusfam"
)

func New() *statusfam.Parser {
	return statusfam.New(statusfam.Options{
		Descriptor: parser.Descriptor{
			BuiltInType: parser.TypeStatuspage,
			DisplayName: "Statuspage",
			Description: "Incident, maintenance and component updates from Atlassian Statuspage",
		},
		Fixture: parser.Payload{
			"meta": map[string]any{"unsubscribe": "https://example.statuspage.io/?unsubscribe=1", "documentation": "https://help.statuspage.io"},
			"page": map[string]any{"id": "kctbh9vrtdwd", "status_indicator": "critical", "status_description": "Partial System Outage", "name": "Example Status"},
			"incident": map[string]any{
				"name":      "API latency elevated",
				"status":    "investigating",
				"impact":    "major",
				"shortlink": "https://stspg.io/abc123",
				"incident_updates": []any{
					map[string]any{"body": "We are investigating elevated API latency.", "status": "investigating"},
				},
			},
		},
	})
}
