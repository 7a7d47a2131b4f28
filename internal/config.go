package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/veleth/ansuz/internal/reconcile"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	Triggers []string          `yaml:"triggers"`
	Anki     AnkiConfig        `yaml:"anki"`
	History  HistoryConfig     `yaml:"history"`
	Enhance  EnhanceConfig     `yaml:"enhance"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Anki.Validate(); err != nil {
		return err
	}
	if err := c.Enhance.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration (serve mode only).
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig locates the note vault and the folders scanned for cards.
// An empty folder entry means top-level files only.
type VaultConfig struct {
	Path    string   `yaml:"path"`
	Folders []string `yaml:"folders"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AnkiConfig holds the AnkiConnect endpoint and reconciliation policy.
type AnkiConfig struct {
	Endpoint string `yaml:"endpoint"`
	// ExistingNoteBehavior is applied to cards that already have a
	// matching remote record: skip, update, or create.
	ExistingNoteBehavior reconcile.Policy `yaml:"existing_note_behavior"`
	CreateDecks          bool             `yaml:"create_decks"`
	BasicModel           string           `yaml:"basic_model"`
	ClozeModel           string           `yaml:"cloze_model"`
	// FallbackDeck receives cards with no trigger attribution. Empty
	// excludes them from sync.
	FallbackDeck string   `yaml:"fallback_deck"`
	Tags         []string `yaml:"tags"`
	// Parallelism bounds concurrent deck reconciliation. 1 = sequential.
	Parallelism int `yaml:"parallelism"`
}

// Validate validates the Anki configuration.
func (c *AnkiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.ExistingNoteBehavior, validation.Required,
			validation.In(reconcile.PolicySkip, reconcile.PolicyUpdate, reconcile.PolicyCreate)),
		validation.Field(&c.BasicModel, validation.Required),
		validation.Field(&c.ClozeModel, validation.Required),
		validation.Field(&c.Parallelism, validation.Min(1)),
	)
}

// HistoryConfig points at the sync-run ledger database. An empty path
// disables run recording and changed-files detection.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// EnhanceConfig controls the optional model-based card enhancement.
type EnhanceConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Validate validates the enhancement configuration.
func (c *EnhanceConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Model, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the control API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8777,
			},
		},
		Vault: VaultConfig{
			Path:    "./vault",
			Folders: []string{""},
		},
		Anki: AnkiConfig{
			Endpoint:             "http://127.0.0.1:8765",
			ExistingNoteBehavior: reconcile.PolicySkip,
			CreateDecks:          true,
			BasicModel:           "Basic",
			ClozeModel:           "Cloze",
			Tags:                 []string{"ansuz"},
			Parallelism:          1,
		},
		History: HistoryConfig{
			Path: "./ansuz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
