package application

import (
	"go.uber.org/zap"

	toolforge "github.com/toolforge/toolforge-go"
	"github.com/toolforge/toolforge-go/db"
	"github.com/toolforge/toolforge-go/internal/config"
	"github.com/toolforge/toolforge-go/sitematrix"
)

// App encapsulates the configured client and logger.
type App struct {
	cfg    config.Config
	client *toolforge.Client
	logger *zap.Logger
}

// New initializes the application from the provided configuration. When a
// tool name is configured its User-Agent is installed on the shared client.
func New(cfg config.Config, logger *zap.Logger, opts ...toolforge.Option) *App {
	base := []toolforge.Option{
		toolforge.WithLogger(logger),
		toolforge.WithHTTPTimeout(cfg.HTTPTimeout),
		toolforge.WithSiteMatrixOptions(
			sitematrix.WithEndpoint(cfg.MetadataURL),
			sitematrix.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		),
		toolforge.WithDBOptions(db.WithDefaultsFile(cfg.DefaultsFile)),
	}
	client := toolforge.New(append(base, opts...)...)

	if cfg.Tool != "" {
		ua := client.SetUserAgent(cfg.Tool, cfg.ToolURL, cfg.ToolEmail)
		logger.Info("user agent configured", zap.String("user_agent", ua))
	}

	return &App{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// Client returns the configured toolforge client.
func (a *App) Client() *toolforge.Client {
	return a.client
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// ResolveOptions returns the database options the CLI applies when only
// resolving targets.
func (a *App) ResolveOptions() []db.Option {
	return []db.Option{db.WithDefaultsFile(a.cfg.DefaultsFile)}
}
