// Package app provides the application context and dependency management
// for the infer CLI: configuration, logging, and the search gateway shared
// by the commands.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/gateway"
)

// App represents the infer application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// customLogger keeps an injected logger from being rebuilt from flags.
	customLogger bool

	// Search gateway (lazy-initialized, singleton)
	mu      sync.RWMutex
	gateway gateway.Gateway
}

// New creates a new App instance with the given version information.
// The app is initialized with configuration from files and environment
// that can be customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapConfig("config", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Gateway returns the search gateway, creating an Elasticsearch client from
// the configuration on first use. It is safe for concurrent use.
func (a *App) Gateway() (gateway.Gateway, error) {
	a.mu.RLock()
	if a.gateway != nil {
		g := a.gateway
		a.mu.RUnlock()
		return g, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.gateway != nil {
		return a.gateway, nil
	}

	g, err := gateway.NewElastic(
		gateway.WithAddresses(a.config.ElasticsearchAddresses...),
		gateway.WithNameField(a.config.NameField),
	)
	if err != nil {
		return nil, err
	}

	a.gateway = g
	return g, nil
}

// Shutdown releases application resources. Runs close their own sinks, so
// there is nothing left to flush here beyond logging.
func (a *App) Shutdown(_ context.Context) error {
	a.logger.Debug().Msg("Shutting down")
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		a.customLogger = true
		return nil
	}
}

// WithGateway sets a custom search gateway (useful for testing).
func WithGateway(g gateway.Gateway) Option {
	return func(a *App) error {
		a.gateway = g
		return nil
	}
}
