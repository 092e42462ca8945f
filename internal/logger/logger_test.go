package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		l, err := NewLogger(env)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", env, err)
		}
		if l == nil {
			t.Fatalf("%s: nil logger", env)
		}
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	if _, err := NewLogger("staging-eu"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info must be disabled at warn level")
	}
	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a no-op logger")
	}
}

func TestWith_AddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("tenant", "acme"))

	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["tenant"]; got != "acme" {
		t.Errorf("tenant field = %v", got)
	}
}
