// Package ntfy is the bidirectional adapter between the canonical message
// and the ntfy publish/subscribe wire format.
//
// The wire shapes below are the bit-exact contract with the relay; the
// server enforces its own schema, so fields must not be renamed casually.
//
// Deliberately unsupported in both directions (the canonical model cannot
// represent them, so they are dropped here rather than half-mapped):
//   - multiple wire action buttons
//   - email delivery
//   - delay/scheduling fields
//   - custom headers beyond title/body
package ntfy

import (
	"strings"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
)

// Payload is the ntfy JSON publish body.
type Payload struct {
	Topic    string   `json:"topic,omitempty"`
	Message  string   `json:"message"`
	Title    string   `json:"title,omitempty"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
	Click    string   `json:"click,omitempty"`
	Icon     string   `json:"icon,omitempty"`
	Attach   string   `json:"attach,omitempty"`
}

// IncomingAttachment mirrors the attachment block of a subscribed event.
type IncomingAttachment struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Expires int64  `json:"expires"`
}

// IncomingAction mirrors an action button of a subscribed event.
type IncomingAction struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Label  string `json:"label"`
	URL    string `json:"url"`
	Clear  bool   `json:"clear"`
}

// IncomingMessage mirrors the relay's own subscribe event shape.
type IncomingMessage struct {
	ID         string              `json:"id"`
	Time       int64               `json:"time"`
	Event      string              `json:"event"`
	Topic      string              `json:"topic"`
	Message    string              `json:"message"`
	Title      string              `json:"title"`
	Priority   int                 `json:"priority"`
	Tags       []string            `json:"tags"`
	Click      string              `json:"click"`
	Icon       string              `json:"icon"`
	Attachment *IncomingAttachment `json:"attachment"`
	Actions    []IncomingAction    `json:"actions"`
}

// Priority bands. The relay uses 1..5; the canonical model only has four
// delivery tiers, so the mapping is fixed and lossy.
const (
	priorityNone     = 1
	prioritySilent   = 2
	priorityNormal   = 3
	priorityCritical = 5
)

func toPriority(dt notification.DeliveryType) int {
	switch dt {
	case notification.DeliveryNone:
		return priorityNone
	case notification.DeliverySilent:
		return prioritySilent
	case notification.DeliveryCritical:
		return priorityCritical
	}
	return priorityNormal
}

func fromPriority(p int) notification.DeliveryType {
	switch p {
	case prioritySilent:
		return notification.DeliverySilent
	case priorityCritical:
		return notification.DeliveryCritical
	}
	// Unmapped priorities (including 1 and 4) read back as NORMAL.
	return notification.DeliveryNormal
}

// ToWire converts a canonical message into the ntfy publish payload.
//
// Body copies verbatim with the title as fallback. Only a NAVIGATE tap
// action becomes a click URL, and only the first image attachment survives;
// video/audio/GIF attachments are dropped at this boundary.
func ToWire(m notification.Message, topic string) Payload {
	body := m.Body
	if body == "" {
		body = m.Title
	}

	out := Payload{
		Topic:    topic,
		Message:  body,
		Title:    m.Title,
		Priority: toPriority(m.DeliveryType),
	}
	if m.Subtitle != "" {
		out.Tags = []string{m.Subtitle}
	}
	if m.TapAction != nil && m.TapAction.Type == notification.ActionNavigate {
		out.Click = m.TapAction.Value
	}
	for _, a := range m.Attachments {
		if a.MediaType == notification.MediaImage {
			out.Attach = a.URL
			break
		}
	}
	return out
}

// FromWire normalizes a subscribed ntfy event into a partial canonical
// message (no routing fields).
func FromWire(in IncomingMessage) notification.Message {
	title := in.Title
	if title == "" {
		title = in.Topic
	}
	if title == "" {
		title = "ntfy"
	}

	m := notification.Message{
		Title:        title,
		Subtitle:     strings.Join(in.Tags, ", "),
		Body:         in.Message,
		DeliveryType: fromPriority(in.Priority),
	}
	if in.Click != "" {
		m.TapAction = &notification.Action{Type: notification.ActionNavigate, Value: in.Click}
	}
	if in.Attachment != nil && in.Attachment.URL != "" {
		m.Attachments = []notification.Attachment{{
			MediaType: mediaTypeFromMIME(in.Attachment.Type),
			URL:       in.Attachment.URL,
			Name:      in.Attachment.Name,
		}}
	}
	return m
}

func mediaTypeFromMIME(mime string) notification.MediaType {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return notification.MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return notification.MediaAudio
	}
	return notification.MediaImage
}
