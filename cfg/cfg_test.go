package cfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "8080" {
		t.Errorf("Port = %s", c.Port)
	}
	if c.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v", c.SessionTTL)
	}
	if c.QR.Size != 300 || !strings.Contains(c.QR.Endpoint, "qrserver") {
		t.Errorf("QR defaults = %+v", c.QR)
	}
	if err := Validate(c); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BASE_URL", "https://x.test/")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("QR_SIZE", "200")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BaseURL != "https://x.test" {
		t.Errorf("BaseURL trailing slash not trimmed: %s", c.BaseURL)
	}
	if c.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", c.SessionTTL)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[1] != "https://b.test" {
		t.Errorf("AllowedOrigins = %v", c.AllowedOrigins)
	}
	if c.QR.Size != 200 {
		t.Errorf("QR.Size = %d", c.QR.Size)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected duration parse error")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Cfg {
		c, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return c
	}
	tests := []struct {
		name   string
		mutate func(*Cfg)
	}{
		{"port not numeric", func(c *Cfg) { c.Port = "http" }},
		{"relative base url", func(c *Cfg) { c.BaseURL = "/shared" }},
		{"redis scheme", func(c *Cfg) { c.RedisURL = "tcp://localhost:6379" }},
		{"rediss without tls", func(c *Cfg) { c.RedisURL = "rediss://localhost:6379" }},
		{"db outside workdir", func(c *Cfg) { c.DatabasePath = "/tmp/../etc/crosssync.db" }},
		{"tiny session ttl", func(c *Cfg) { c.SessionTTL = time.Second }},
		{"huge content", func(c *Cfg) { c.MaxContentSize = 10 * 1024 * 1024 }},
		{"bad proxy", func(c *Cfg) { c.TrustedProxies = []string{"10.0.0.0/99"} }},
		{"prod metrics creds", func(c *Cfg) { c.Environment = "production" }},
		{"qr endpoint", func(c *Cfg) { c.QR.Endpoint = "qrserver" }},
		{"export width", func(c *Cfg) { c.ExportWidth = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := Validate(c); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsMemoryDSN(t *testing.T) {
	c, _ := Load()
	c.DatabasePath = "file:crosssync?mode=memory&cache=shared"
	if err := Validate(c); err != nil {
		t.Errorf("memory DSN should validate: %v", err)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("CROSSSYNC_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CROSSSYNC_TEST_KEY") })
	used, err := LoadEnvFiles(filepath.Join(dir, "missing.env"), p)
	if err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if used != p {
		t.Errorf("used = %q, want %q", used, p)
	}
	if os.Getenv("CROSSSYNC_TEST_KEY") != "from-file" {
		t.Error("variable not applied")
	}
}

func TestSecretRedacts(t *testing.T) {
	s := NewSecret("hunter2")
	if s.String() != "***REDACTED***" {
		t.Errorf("String leaked: %s", s.String())
	}
	if s.Value() != "hunter2" {
		t.Errorf("Value = %s", s.Value())
	}
}
