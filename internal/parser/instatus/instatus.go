// Package instatus adapts Instatus webhooks. The protocol mirrors
// Statuspage's except that status values arrive uppercase.
package instatus

import (
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/statusfam"
)

func New() *statusfam.Parser {
	return statusfam.New(statusfam.Options{
		Descriptor: parser.Descriptor{
			BuiltInType: parser.TypeInstatus,
			DisplayName: "Instatus",
			Description: "Incident and component updates from Instatus status pages",
		},
		FoldStatus: true,
		Fixture: parser.Payload{
			"meta": map[string]any{"unsubscribe": "https://example.instatus.com/subscriptions/x/unsubscribe", "documentation": "https://instatus.com/help/webhooks"},
			"page": map[string]any{"id": "ckjsx0q1s12345", "status_indicator": "UP", "status_description": "All systems operational", "url": "https://example.instatus.com"},
			"incident": map[string]any{
				"name":   "Database connectivity issues",
				"status": "IDENTIFIED",
				"impact": "MAJOROUTAGE",
				"incident_updates": []any{
					map[string]any{"body": "The failing replica has been identified.", "status": "IDENTIFIED"},
				},
			},
		},
	})
}
