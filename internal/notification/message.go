// Package notification defines the canonical message produced by every
// webhook parser and consumed by the delivery relays.
package notification

import (
	"errors"
	"fmt"
	"strings"
)

// DeliveryType governs downstream push priority.
//
// Parsers only ever emit Silent, Normal or Critical. None ("no push") exists
// for callers that want a message recorded but never pushed; it is mapped at
// the wire boundary only.
type DeliveryType string

const (
	DeliverySilent   DeliveryType = "SILENT"
	DeliveryNormal   DeliveryType = "NORMAL"
	DeliveryCritical DeliveryType = "CRITICAL"
	DeliveryNone     DeliveryType = "NONE"
)

// Valid reports whether d is one of the known delivery types.
func (d DeliveryType) Valid() bool {
	switch d {
	case DeliverySilent, DeliveryNormal, DeliveryCritical, DeliveryNone:
		return true
	}
	return false
}

// MediaType classifies an attachment.
type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
	MediaGIF   MediaType = "GIF"
	MediaAudio MediaType = "AUDIO"
)

// Attachment is a remote media reference carried with a message.
type Attachment struct {
	MediaType MediaType `json:"mediaType"`
	URL       string    `json:"url"`
	Name      string    `json:"name,omitempty"`
}

// ActionType is the kind of an action button or tap action.
type ActionType string

const (
	// ActionNavigate opens a URL on the receiving device.
	ActionNavigate ActionType = "NAVIGATE"
	// ActionBackgroundCall performs an HTTP call without opening the app.
	// Not representable on the ntfy wire; documented there as unsupported.
	ActionBackgroundCall ActionType = "BACKGROUND_CALL"
)

// Action is a user-visible action attached to a message.
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
	Title string     `json:"title,omitempty"`
}

// MaxTitleLen bounds the title. Longer titles are truncated, never rejected.
const MaxTitleLen = 200

// Message is the one canonical notification record.
//
// BucketID is always empty at the parsing layer; routing is assigned by the
// caller that owns bucket resolution.
type Message struct {
	Title        string       `json:"title"`
	Subtitle     string       `json:"subtitle,omitempty"`
	Body         string       `json:"body,omitempty"`
	DeliveryType DeliveryType `json:"deliveryType"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	Actions      []Action     `json:"actions,omitempty"`
	TapAction    *Action      `json:"tapAction,omitempty"`
	BucketID     string       `json:"bucketId"`
}

var errEmptyTitle = errors.New("message title is empty")

// Validate checks the structural invariants every parser output must hold.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return errEmptyTitle
	}
	switch m.DeliveryType {
	case DeliverySilent, DeliveryNormal, DeliveryCritical:
	default:
		return fmt.Errorf("invalid delivery type %q", m.DeliveryType)
	}
	return nil
}

// Normalize truncates over-long titles and defaults the delivery type.
// It is applied by the parsing layer before a message leaves it.
func (m *Message) Normalize() {
	if r := []rune(m.Title); len(r) > MaxTitleLen {
		m.Title = string(r[:MaxTitleLen-1]) + "…"
	}
	if !m.DeliveryType.Valid() {
		m.DeliveryType = DeliveryNormal
	}
}
