// Package emqx adapts EMQX broker webhook events (client lifecycle,
// sessions, message delivery, auth).
package emqx

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
)

// maxNonPrintableRatio gates the best-effort base64 decode of message
// payloads: if more than this share of decoded bytes is non-printable, the
// original string is kept. The threshold is a tunable heuristic, not a law.
const maxNonPrintableRatio = 0.15

var eventPrefixes = []string{"client.", "session.", "message.", "auth.", "delivery."}

// bare event names some EMQX rule-engine templates emit without a prefix.
var bareEvents = map[string]bool{
	"connected":    true,
	"disconnected": true,
	"subscribed":   true,
	"unsubscribed": true,
	"delivered":    true,
}

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Descriptor() parser.Descriptor {
	return parser.Descriptor{
		BuiltInType: parser.TypeEMQX,
		DisplayName: "EMQX",
		Description: "MQTT broker events from EMQX webhooks",
	}
}

func eventName(payload parser.Payload) string {
	if e := payload.String("event"); e != "" {
		return e
	}
	return payload.String("type")
}

func (p *Parser) Validate(ctx context.Context, payload parser.Payload, pctx parser.Context) bool {
	_ = ctx
	_ = pctx
	if payload == nil {
		return false
	}
	event := eventName(payload)
	if event == "" {
		return false
	}
	for _, prefix := range eventPrefixes {
		if strings.HasPrefix(event, prefix) {
			return true
		}
	}
	return bareEvents[event]
}

func (p *Parser) Parse(ctx context.Context, payload parser.Payload, pctx parser.Context) (out notification.Message) {
	defer parser.Recover(p.Descriptor(), payload, notification.DeliveryNormal, &out, pctx.Log)
	_ = ctx

	event := eventName(payload)
	clientID := payload.String("clientid")

	title := fmt.Sprintf("EMQX %s", event)
	if clientID != "" {
		title = fmt.Sprintf("EMQX %s: %s", event, clientID)
	}

	var b strings.Builder
	if username := payload.String("username"); username != "" {
		fmt.Fprintf(&b, "Username: %s", username)
	}
	if topic := payload.String("topic"); topic != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Topic: %s", topic)
	}
	if reason := payload.String("reason"); reason != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Reason: %s", reason)
	}
	if msg := payload.String("payload"); msg != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(decodeBody(msg))
	}

	return notification.Message{
		Title:        title,
		Subtitle:     clientID,
		Body:         b.String(),
		DeliveryType: eventSeverity(event),
	}
}

// eventSeverity classifies by substring: connection losses and auth problems
// page, per-message chatter stays silent, the rest notifies normally.
func eventSeverity(event string) notification.DeliveryType {
	switch {
	case strings.Contains(event, "disconnected"),
		strings.Contains(event, "auth"),
		strings.Contains(event, "denied"),
		strings.Contains(event, "error"):
		return notification.DeliveryCritical
	case strings.Contains(event, "publish"),
		strings.Contains(event, "delivered"):
		return notification.DeliverySilent
	}
	return notification.DeliveryNormal
}

// decodeBody attempts a base64 decode of the MQTT payload. Brokers often
// ship binary payloads base64-encoded, but plain text is just as common, so
// the decode is kept only when the result looks like text.
func decodeBody(s string) string {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(decoded) == 0 {
		return s
	}
	nonPrintable := 0
	for _, b := range decoded {
		if !printable(b) {
			nonPrintable++
		}
	}
	if float64(nonPrintable)/float64(len(decoded)) > maxNonPrintableRatio {
		return s
	}
	return string(decoded)
}

func printable(b byte) bool {
	switch b {
	case '\n', '\r', '\t':
		return true
	}
	return b >= 0x20 && b < 0x7f
}

func (p *Parser) TestPayload() parser.Payload {
	return parser.Payload{
		"event":    "client.disconnected",
		"clientid": "sensor-kitchen-12",
		"username": "iot-fleet",
		"reason":   "keepalive_timeout",
		"peername": "10.0.4.17:52100",
	}
}
