package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
	t.Setenv("ACTOR_ID", "biz-1")
	t.Setenv("FULFILL_DELAY", "2s")
	t.Setenv("FULFILL_AUTO", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Supabase.URL != "https://proj.supabase.co" {
		t.Fatalf("url = %s", cfg.Supabase.URL)
	}
	if cfg.Actor.Role != "business" {
		t.Fatalf("default role = %s", cfg.Actor.Role)
	}
	if cfg.Fulfill.Delay != 2*time.Second {
		t.Fatalf("delay = %v", cfg.Fulfill.Delay)
	}
	if !cfg.Fulfill.AutoFulfill {
		t.Fatal("auto fulfill not decoded")
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Sync.ResyncSchedule != "@every 5m" {
		t.Fatalf("resync schedule = %s", cfg.Sync.ResyncSchedule)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("ACTOR_ID", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required variables")
	}
}

func TestLoadBucketMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buckets.yaml")
	content := "buckets:\n  post: posts\n  short: shorts\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	mapping, err := LoadBucketMapping(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if mapping["short"] != "shorts" || mapping["post"] != "posts" {
		t.Fatalf("mapping = %+v", mapping)
	}
}

func TestLoadBucketMappingEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buckets.yaml")
	if err := os.WriteFile(path, []byte("buckets: {}\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadBucketMapping(path); err == nil {
		t.Fatal("expected error for empty mapping")
	}
}
