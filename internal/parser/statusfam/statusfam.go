// Package statusfam implements the status-page webhook protocol shared by
// three near-identical providers (Statuspage, Instatus, Statuspal).
//
// All three POST an object with a meta block, a page reference, and either
// an incident/maintenance node or a component_update node. The per-provider
// packages only differ in identity, fixtures, and status-case folding.
package statusfam

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
)

// Options captures the per-provider differences.
type Options struct {
	Descriptor parser.Descriptor
	// FoldStatus lowercases status values before matching (Instatus sends
	// INVESTIGATING where Statuspage sends investigating).
	FoldStatus bool
	// Fixture is the provider's self-test payload.
	Fixture parser.Payload
}

// Parser is the shared status-page implementation.
type Parser struct {
	d       parser.Descriptor
	fold    bool
	fixture parser.Payload
}

func New(opts Options) *Parser {
	return &Parser{d: opts.Descriptor, fold: opts.FoldStatus, fixture: opts.Fixture}
}

func (p *Parser) Descriptor() parser.Descriptor { return p.d }

func (p *Parser) TestPayload() parser.Payload { return p.fixture }

// Validate requires meta, a page id, and one of the three event nodes.
func (p *Parser) Validate(ctx context.Context, payload parser.Payload, pctx parser.Context) bool {
	_ = ctx
	_ = pctx
	if payload == nil {
		return false
	}
	if payload.Map("meta") == nil {
		return false
	}
	page := payload.Map("page")
	if page == nil || page.String("id") == "" {
		return false
	}
	return payload.Map("incident") != nil ||
		payload.Map("maintenance") != nil ||
		payload.Map("component_update") != nil
}

func (p *Parser) Parse(ctx context.Context, payload parser.Payload, pctx parser.Context) (out notification.Message) {
	defer parser.Recover(p.d, payload, notification.DeliveryNormal, &out, pctx.Log)
	_ = ctx

	page := payload.Map("page")
	pageName := page.String("name")
	if pageName == "" {
		pageName = page.String("id")
	}

	if cu := payload.Map("component_update"); cu != nil {
		return p.parseComponentUpdate(payload, cu, pageName)
	}
	if inc := payload.Map("incident"); inc != nil {
		return p.parseIncident(inc, pageName, "Incident")
	}
	return p.parseIncident(payload.Map("maintenance"), pageName, "Maintenance")
}

func (p *Parser) status(s string) string {
	if p.fold {
		return strings.ToLower(s)
	}
	return s
}

func (p *Parser) parseIncident(inc parser.Payload, pageName, kind string) notification.Message {
	name := inc.String("name")
	if name == "" {
		name = "(unnamed)"
	}
	status := p.status(inc.String("status"))
	resolvedAt := inc.String("resolved_at")

	dt := incidentSeverity(status, resolvedAt)
	if kind == "Maintenance" {
		// Maintenance windows are announcements, never pages.
		dt = notification.DeliveryNormal
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s", status)
	if impact := inc.String("impact"); impact != "" {
		fmt.Fprintf(&b, "\nImpact: %s", impact)
	}
	if update := latestUpdate(inc); update != "" {
		fmt.Fprintf(&b, "\n\n%s", update)
	}
	if resolvedAt != "" {
		fmt.Fprintf(&b, "\nResolved at: %s", resolvedAt)
	}

	m := notification.Message{
		Title:        fmt.Sprintf("%s %s: %s", kind, status, name),
		Subtitle:     pageName,
		Body:         b.String(),
		DeliveryType: dt,
	}
	if link := inc.String("shortlink"); link != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: link}
	}
	return m
}

// incidentSeverity keys off the incident state machine: unresolved incidents
// still being investigated or identified page the user; anything resolved
// (explicitly or via resolved_at) does not.
func incidentSeverity(status, resolvedAt string) notification.DeliveryType {
	if resolvedAt != "" || status == "resolved" || status == "completed" {
		return notification.DeliveryNormal
	}
	switch status {
	case "investigating", "identified":
		return notification.DeliveryCritical
	}
	return notification.DeliveryNormal
}

func (p *Parser) parseComponentUpdate(payload, cu parser.Payload, pageName string) notification.Message {
	newStatus := p.status(cu.String("new_status"))
	oldStatus := p.status(cu.String("old_status"))

	compName := payload.Map("component").String("name")
	if compName == "" {
		compName = cu.String("component_id")
	}

	body := fmt.Sprintf("New status: %s", newStatus)
	if oldStatus != "" {
		body = fmt.Sprintf("Status changed: %s → %s", oldStatus, newStatus)
	}

	return notification.Message{
		Title:        fmt.Sprintf("Component update: %s is %s", compName, newStatus),
		Subtitle:     pageName,
		Body:         body,
		DeliveryType: componentSeverity(newStatus),
	}
}

// componentSeverity is keyed directly off the new status value.
func componentSeverity(newStatus string) notification.DeliveryType {
	switch newStatus {
	case "partial_outage", "major_outage":
		return notification.DeliveryCritical
	}
	// operational, degraded_performance, under_maintenance, unknown values
	return notification.DeliveryNormal
}

func latestUpdate(inc parser.Payload) string {
	updates := inc.Slice("incident_updates")
	if len(updates) == 0 {
		return ""
	}
	first, _ := updates[0].(map[string]any)
	if first == nil {
		return ""
	}
	return parser.Payload(first).String("body")
}
