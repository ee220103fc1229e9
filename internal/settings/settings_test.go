package settings

import (
	"context"
	"testing"

	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()

	if _, ok, err := s.GetSetting(ctx, "u1", KeyExpoWebhookSecret); err != nil || ok {
		t.Fatalf("GetSetting on empty store = ok=%v err=%v", ok, err)
	}

	if err := s.PutSetting(ctx, "u1", KeyExpoWebhookSecret, "hush"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	v, ok, err := s.GetSetting(ctx, "u1", KeyExpoWebhookSecret)
	if err != nil || !ok || v != "hush" {
		t.Fatalf("GetSetting = %q, %v, %v", v, ok, err)
	}

	// Settings are per user.
	if _, ok, _ := s.GetSetting(ctx, "u2", KeyExpoWebhookSecret); ok {
		t.Fatal("setting leaked across users")
	}

	// Names are case-insensitive.
	if v, ok, _ := s.GetSetting(ctx, "u1", "EXPO_WEBHOOK_SECRET"); !ok || v != "hush" {
		t.Fatalf("case-folded lookup = %q, %v", v, ok)
	}

	// Overwrite.
	if err := s.PutSetting(ctx, "u1", KeyExpoWebhookSecret, "new"); err != nil {
		t.Fatalf("PutSetting overwrite: %v", err)
	}
	if v, _, _ := s.GetSetting(ctx, "u1", KeyExpoWebhookSecret); v != "new" {
		t.Fatalf("after overwrite = %q", v)
	}

	if err := s.DeleteSetting(ctx, "u1", KeyExpoWebhookSecret); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	if _, ok, _ := s.GetSetting(ctx, "u1", KeyExpoWebhookSecret); ok {
		t.Fatal("setting survived delete")
	}
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", "memory"} {
		s, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		_ = s.Close()
	}

	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("Open accepted an unknown driver")
	}
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("sqlite driver without path did not fail")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Open(Config{Driver: "sqlite", Path: t.TempDir() + "/settings.db"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer s.Close()

	if err := s.PutSetting(ctx, "u1", KeyGithubEventsFilter, FilterAllFailure); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	v, ok, err := s.GetSetting(ctx, "u1", KeyGithubEventsFilter)
	if err != nil || !ok || v != FilterAllFailure {
		t.Fatalf("GetSetting = %q, %v, %v", v, ok, err)
	}

	// Upsert replaces.
	if err := s.PutSetting(ctx, "u1", KeyGithubEventsFilter, FilterAllSuccess); err != nil {
		t.Fatalf("PutSetting upsert: %v", err)
	}
	if v, _, _ := s.GetSetting(ctx, "u1", KeyGithubEventsFilter); v != FilterAllSuccess {
		t.Fatalf("after upsert = %q", v)
	}

	if err := s.DeleteSetting(ctx, "u1", KeyGithubEventsFilter); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	if _, ok, _ := s.GetSetting(ctx, "u1", KeyGithubEventsFilter); ok {
		t.Fatal("setting survived delete")
	}
}
