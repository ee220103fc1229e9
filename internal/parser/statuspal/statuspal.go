// Package statuspal adapts Statuspal webhooks (Statuspage-compatible
// envelope).
package statuspal

import (
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/statusfam"
)

func New() *statusfam.Parser {
	return statusfam.New(statusfam.Options{
		Descriptor: parser.Descriptor{
			BuiltInType: parser.TypeStatuspal,
			DisplayName: "Statuspal",
			Description: "Incident and maintenance updates from Statuspal status pages",
		},
		FoldStatus: true,
		Fixture: parser.Payload{
			"meta": map[string]any{"generator": "statuspal", "version": "1"},
			"page": map[string]any{"id": "example-sp", "name": "Example Services"},
			"maintenance": map[string]any{
				"name":        "Scheduled database upgrade",
				"status":      "scheduled",
				"resolved_at": "",
				"incident_updates": []any{
					map[string]any{"body": "Maintenance window 02:00-03:00 UTC."},
				},
			},
		},
	})
}
