// Package parser defines the contract every webhook source implements:
// a shape-gated Validate plus a Parse that always yields a canonical
// notification.Message, no matter how malformed the input is.
package parser

import (
	"context"
	"strings"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/settings"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

// BuiltInType is the stable identifier used to select a parser from the registry.
type BuiltInType string

const (
	TypeGithub     BuiltInType = "GITHUB"
	TypeRailway    BuiltInType = "RAILWAY"
	TypeServarr    BuiltInType = "SERVARR"
	TypeExpo       BuiltInType = "EXPO"
	TypeEMQX       BuiltInType = "EMQX"
	TypeStatuspage BuiltInType = "STATUSPAGE"
	TypeInstatus   BuiltInType = "INSTATUS"
	TypeStatuspal  BuiltInType = "STATUSPAL"
)

// Descriptor is the static identity of a parser, used for registry lookup
// and UI listings.
type Descriptor struct {
	BuiltInType BuiltInType `json:"builtInType"`
	DisplayName string      `json:"displayName"`
	Description string      `json:"description"`
}

// Context carries everything a parser needs beyond the payload itself.
//
// It is constructed fresh per request and never mutated by parsers.
// The zero value is valid: no user, no headers, no settings lookups.
type Context struct {
	UserID  string
	Headers map[string]string
	// RawBody is the exact serialized request body, required for signature
	// verification. May be nil when the caller only has a decoded payload.
	RawBody []byte
	// Settings is the injected read-only per-user settings capability.
	Settings settings.Reader
	// Log receives diagnostics (lookup failures, fallback parses).
	// The zero logger is a safe no-op.
	Log logx.Logger
}

// Header returns the named header value, matching case-insensitively.
func (c Context) Header(name string) string {
	if v, ok := c.Headers[name]; ok {
		return v
	}
	for k, v := range c.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Setting resolves a per-user setting via the injected reader.
//
// Lookup errors are deliberately folded into "unconfigured": a parser must
// never fail a webhook because the settings store was unreachable. The error
// is logged for operators.
func (c Context) Setting(ctx context.Context, name string) (string, bool) {
	if c.Settings == nil || c.UserID == "" {
		return "", false
	}
	v, ok, err := c.Settings.GetSetting(ctx, c.UserID, name)
	if err != nil {
		c.Log.Warn("settings lookup failed; treating as unconfigured",
			logx.String("setting", name), logx.String("user_id", c.UserID), logx.Err(err))
		return "", false
	}
	return v, ok
}

// Parser is implemented once per external webhook source.
//
// Validate and Parse may suspend (settings lookups) but must never panic
// outward. Validate returns false for any shape it does not recognize,
// including nil input. Parse always returns a structurally valid Message;
// internal faults surface as the deterministic fallback built by Recover.
type Parser interface {
	Descriptor() Descriptor
	Validate(ctx context.Context, payload Payload, pctx Context) bool
	Parse(ctx context.Context, payload Payload, pctx Context) notification.Message
}

// SelfTester is implemented by parsers that ship a literal fixture accepted
// by their own Validate. Used by the self-test scheduler and tests.
type SelfTester interface {
	TestPayload() Payload
}
