package internal

import (
	"testing"

	"github.com/veleth/ansuz/internal/reconcile"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"port zero", func(c *Config) { c.App.HTTP.Port = 0 }, true},
		{"port too large", func(c *Config) { c.App.HTTP.Port = 70000 }, true},
		{"missing vault path", func(c *Config) { c.Vault.Path = "" }, true},
		{"missing endpoint", func(c *Config) { c.Anki.Endpoint = "" }, true},
		{"unknown policy", func(c *Config) { c.Anki.ExistingNoteBehavior = "merge" }, true},
		{"update policy", func(c *Config) { c.Anki.ExistingNoteBehavior = reconcile.PolicyUpdate }, false},
		{"missing basic model", func(c *Config) { c.Anki.BasicModel = "" }, true},
		{"parallelism zero", func(c *Config) { c.Anki.Parallelism = 0 }, true},
		{"enhance enabled without key", func(c *Config) {
			c.Enhance.Enabled = true
			c.Enhance.Model = "claude-sonnet-4-20250514"
		}, true},
		{"enhance enabled complete", func(c *Config) {
			c.Enhance.Enabled = true
			c.Enhance.APIKey = "sk-test"
			c.Enhance.Model = "claude-sonnet-4-20250514"
		}, false},
		{"enhance disabled ignores fields", func(c *Config) { c.Enhance.Enabled = false }, false},
		{"token auth without token", func(c *Config) { c.Auth.Mode = AuthModeToken }, true},
		{"token auth with token", func(c *Config) {
			c.Auth.Mode = AuthModeToken
			c.Auth.Token = "secret"
		}, false},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "mtls" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthConfigDefaultsToDisabled(t *testing.T) {
	c := AuthConfig{}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Mode != AuthModeDisabled {
		t.Errorf("mode = %q", c.Mode)
	}
	if c.AuthEnabled() {
		t.Error("disabled mode reports enabled")
	}
}

func TestHTTPConfigAddress(t *testing.T) {
	c := HTTPConfig{Port: 8777}
	if got := c.Address(); got != ":8777" {
		t.Errorf("Address() = %q", got)
	}
}
