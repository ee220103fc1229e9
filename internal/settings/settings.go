// Package settings exposes the per-user settings store consumed by parsers.
//
// Parsers only ever need the read side (Reader): shared webhook secrets and
// event filter preferences. The write side exists for the admin endpoint and
// tests.
package settings

import (
	"context"
	"strings"
	"sync"
)

// Well-known setting names.
const (
	KeyExpoWebhookSecret  = "expo_webhook_secret"
	KeyGithubEventsFilter = "github_events_filter"
)

// Filter values understood by the CI/build parser (compared case-insensitively).
const (
	FilterAllSuccess = "ALL_SUCCESS"
	FilterAllFailure = "ALL_FAILURE"
)

// Reader is the read-only capability handed to parsers.
//
// A lookup that fails (store unreachable) is reported via err; callers treat
// that as "unconfigured" and log it, so a flaky store never drops webhooks.
type Reader interface {
	GetSetting(ctx context.Context, userID, name string) (value string, ok bool, err error)
}

// Store is the full settings API.
type Store interface {
	Reader
	PutSetting(ctx context.Context, userID, name, value string) error
	DeleteSetting(ctx context.Context, userID, name string) error
	Close() error
}

// Memory is an in-memory Store used in tests and when persistence is disabled.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemory() *Memory {
	return &Memory{m: map[string]string{}}
}

func memKey(userID, name string) string {
	return userID + "\x00" + strings.ToLower(strings.TrimSpace(name))
}

func (s *Memory) GetSetting(ctx context.Context, userID, name string) (string, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[memKey(userID, name)]
	return v, ok, nil
}

func (s *Memory) PutSetting(ctx context.Context, userID, name, value string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[memKey(userID, name)] = value
	return nil
}

func (s *Memory) DeleteSetting(ctx context.Context, userID, name string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, memKey(userID, name))
	return nil
}

func (s *Memory) Close() error { return nil }
