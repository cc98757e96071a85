package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestManagerLoadAndGet(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get returned different config")
	}
}

func TestManagerLoadRejectsInvalid(t *testing.T) {
	bad := strings.Replace(validYAML, `schedule: "12h"`, `schedule: "never"`, 1)
	m := NewManager(writeConfig(t, "config.yaml", bad))
	if _, err := m.Load(); err == nil {
		t.Fatal("invalid config loaded")
	}
}

func TestManagerReloadPublishes(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// Unchanged content: no publish.
	m.reload(context.Background())
	select {
	case <-sub:
		t.Fatal("unchanged config was published")
	case <-time.After(50 * time.Millisecond):
	}

	updated := strings.Replace(validYAML, `schedule: "12h"`, `schedule: "6h"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())

	select {
	case cfg := <-sub:
		if cfg.Monitor.Schedule != "6h" {
			t.Fatalf("schedule = %q", cfg.Monitor.Schedule)
		}
	case <-time.After(time.Second):
		t.Fatal("reload not published")
	}
}

func TestManagerReloadKeepsPreviousOnBadEdit(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	if err := os.WriteFile(path, []byte("telegram: {"), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())

	select {
	case <-sub:
		t.Fatal("broken config was published")
	case <-time.After(50 * time.Millisecond):
	}
	if m.Get().Monitor.Schedule != "12h" {
		t.Fatal("previous config lost")
	}
}

func TestManagerValidatorBlocksPublish(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Monitor.Schedule == "6h" {
			return context.Canceled
		}
		return nil
	})

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	updated := strings.Replace(validYAML, `schedule: "12h"`, `schedule: "6h"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())

	select {
	case <-sub:
		t.Fatal("rejected config was published")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManagerSlowSubscriberGetsLatest(t *testing.T) {
	m := NewManager("unused")
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	first := &Config{}
	first.Monitor.Schedule = "1h"
	second := &Config{}
	second.Monitor.Schedule = "2h"

	m.publish(first)
	m.publish(second) // buffer full: oldest dropped, newest delivered

	got := <-sub
	if got.Monitor.Schedule != "2h" {
		t.Fatalf("schedule = %q, want latest", got.Monitor.Schedule)
	}
}
