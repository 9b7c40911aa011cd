package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
listen:
  api_port: 8080

checks:
  interval: 30s
  dial_timeout: 5s
  fail_threshold: 3

targets:
  primary:
    host: localhost
    port: 5432
    dbname: testdb
    username: testuser
    password: testpass
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen.APIPort != 8080 {
		t.Errorf("expected api port 8080, got %d", cfg.Listen.APIPort)
	}
	if cfg.Checks.FailThreshold != 3 {
		t.Errorf("expected fail threshold 3, got %d", cfg.Checks.FailThreshold)
	}
	if cfg.Checks.Interval != 30*time.Second {
		t.Errorf("expected interval 30s, got %v", cfg.Checks.Interval)
	}

	target, ok := cfg.Targets["primary"]
	if !ok {
		t.Fatal("primary target not found")
	}
	if target.Host != "localhost" {
		t.Errorf("expected host localhost, got %s", target.Host)
	}
	if target.Addr() != "localhost:5432" {
		t.Errorf("Addr() = %q", target.Addr())
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	os.Setenv("TEST_DB_PASSWORD", "secret123")
	defer os.Unsetenv("TEST_DB_PASSWORD")

	yaml := `
targets:
  primary:
    host: localhost
    port: 5432
    username: user
    password: ${TEST_DB_PASSWORD}
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tc := cfg.Targets["primary"]
	if tc.Password != "secret123" {
		t.Errorf("expected password secret123, got %s", tc.Password)
	}
}

func TestLoadEnvSubstitutionLeavesUnsetVarsUntouched(t *testing.T) {
	os.Unsetenv("PGWIRE_TEST_UNSET_VAR")

	yaml := `
targets:
  primary:
    host: localhost
    port: 5432
    username: user
    password: ${PGWIRE_TEST_UNSET_VAR}
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Targets["primary"].Password != "${PGWIRE_TEST_UNSET_VAR}" {
		t.Errorf("expected literal placeholder preserved, got %q", cfg.Targets["primary"].Password)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing host",
			yaml: `
targets:
  t1:
    port: 5432
    username: user
`,
		},
		{
			name: "missing port",
			yaml: `
targets:
  t1:
    host: localhost
    username: user
`,
		},
		{
			name: "missing username",
			yaml: `
targets:
  t1:
    host: localhost
    port: 5432
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	path := writeTemp(t, `targets: {}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen.APIPort != 8080 {
		t.Errorf("expected default api port 8080, got %d", cfg.Listen.APIPort)
	}
	if cfg.Listen.APIBind != "127.0.0.1" {
		t.Errorf("expected default api bind 127.0.0.1, got %s", cfg.Listen.APIBind)
	}
	if cfg.Checks.Interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", cfg.Checks.Interval)
	}
	if cfg.Checks.FailThreshold != 3 {
		t.Errorf("expected default fail threshold 3, got %d", cfg.Checks.FailThreshold)
	}
}

func TestTargetConfigEffectiveValues(t *testing.T) {
	defaults := CheckDefaults{
		Interval:      30 * time.Second,
		DialTimeout:   5 * time.Second,
		FailThreshold: 3,
	}

	threshold := 10
	tc := TargetConfig{FailThreshold: &threshold}

	if tc.EffectiveInterval(defaults) != 30*time.Second {
		t.Error("expected default interval")
	}
	if tc.EffectiveFailThreshold(defaults) != 10 {
		t.Error("expected overridden fail threshold of 10")
	}
	if tc.EffectiveDialTimeout(defaults) != 5*time.Second {
		t.Error("expected default dial timeout")
	}

	dt := 2 * time.Second
	tc.DialTimeout = &dt
	if tc.EffectiveDialTimeout(defaults) != 2*time.Second {
		t.Error("expected overridden dial timeout of 2s")
	}
}

func TestTargetConfigRedacted(t *testing.T) {
	tc := TargetConfig{Password: "hunter2"}
	r := tc.Redacted()
	if r.Password != "***REDACTED***" {
		t.Errorf("Redacted().Password = %q", r.Password)
	}
	if tc.Password != "hunter2" {
		t.Error("Redacted must not mutate the receiver")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
