package parser

import (
	"fmt"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

// FallbackMessage is the deterministic message returned when a parser's
// rendering faults. The body embeds the serialized raw payload so operators
// can diagnose what the source actually sent.
func FallbackMessage(d Descriptor, payload Payload, dt notification.DeliveryType) notification.Message {
	m := notification.Message{
		Title:        fmt.Sprintf("%s: unparsed notification", d.DisplayName),
		Body:         "The payload could not be rendered.\n\nRaw payload:\n" + payload.JSON(),
		DeliveryType: dt,
	}
	m.Normalize()
	return m
}

// Recover is deferred at the top of every Parse implementation.
//
// On panic it replaces *out with the parser's fallback message; on the
// normal path it only normalizes the result so the structural invariants
// (non-empty title, known delivery type) hold either way.
func Recover(d Descriptor, payload Payload, dt notification.DeliveryType, out *notification.Message, log logx.Logger) {
	if r := recover(); r != nil {
		log.Warn("parse fault; returning fallback message",
			logx.String("parser", string(d.BuiltInType)), logx.Any("panic", r))
		*out = FallbackMessage(d, payload, dt)
		return
	}
	out.Normalize()
}
