package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	mode   Mode
}

// Mode selects how the application runs.
type Mode string

const (
	// ModeSync performs one synchronization pass and exits.
	ModeSync Mode = "sync"
	// ModeServe runs the HTTP control API plus the vault watcher.
	ModeServe Mode = "serve"
	// ModeMCP serves MCP tools over stdio.
	ModeMCP Mode = "mcp"
)

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the run mode. Defaults to ModeSync.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}
