package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  title: "Test Site"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Site.Title != "Test Site" {
		t.Errorf("title = %q", cfg.Site.Title)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if len(cfg.Relays.Defaults) == 0 {
		t.Error("default relay set should be non-empty")
	}
	if cfg.Feed.PageSize != 50 {
		t.Errorf("default page size = %d, want 50", cfg.Feed.PageSize)
	}
	if cfg.Feed.DefaultSort != "hot" {
		t.Errorf("default sort = %q, want hot", cfg.Feed.DefaultSort)
	}
	if cfg.Caching.TTL.Zaps != 30 || cfg.Caching.TTL.Eligibility != 60 {
		t.Errorf("default TTLs = %+v", cfg.Caching.TTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "bad sort mode",
			content: `
feed:
  default_sort: newest
`,
			wantMsg: "DefaultSort",
		},
		{
			name: "bad cache engine",
			content: `
caching:
  enabled: true
  engine: memcached
`,
			wantMsg: "Engine",
		},
		{
			name: "bad relay scheme",
			content: `
relays:
  defaults:
    - url: https://relay.example
      read: true
      write: true
`,
			wantMsg: "ws://",
		},
		{
			name: "bad log level",
			content: `
logging:
  level: verbose
`,
			wantMsg: "Level",
		},
		{
			name:    "not yaml",
			content: `{{{`,
			wantMsg: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TIDELINE_REDIS_URL", "redis://cache.internal:6379/2")
	t.Setenv("TIDELINE_LISTEN", "0.0.0.0:9090")

	path := writeConfig(t, `
caching:
  engine: redis
  redis_url: redis://from-file:6379
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Caching.RedisURL != "redis://cache.internal:6379/2" {
		t.Errorf("redis url = %q, env should win over file", cfg.Caching.RedisURL)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("listen = %s:%d, want 0.0.0.0:9090", cfg.Server.Host, cfg.Server.Port)
	}
}

func TestEnvOverrideBadListen(t *testing.T) {
	t.Setenv("TIDELINE_LISTEN", "no-port-here")

	path := writeConfig(t, "")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed TIDELINE_LISTEN")
	}
}

func TestExampleConfigParses(t *testing.T) {
	data, err := GetExampleConfig()
	if err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, string(data))
	if _, err := Load(path); err != nil {
		t.Errorf("embedded example config must load cleanly: %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("Default() must validate: %v", err)
	}
}
