package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"extflow/internal/backend"
	"extflow/internal/config"
	"extflow/internal/db"
	"extflow/internal/journal"
	"extflow/internal/migrate"
	"extflow/internal/server"
	"extflow/internal/workflow"
)

// App holds the wired components for one workspace.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Journal *journal.Journal
	Backend *backend.Client
	Engine  workflow.Engine
	Logger  *zap.Logger
}

// NewLogger builds the process logger. Development output is human readable
// and includes debug messages.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Open wires the backend client, the engine and, when enabled, the journal
// database for workspace. The caller must Close the App.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:  cfg,
		Backend: backend.New(cfg.Backend.BaseURL, cfg.BackendTimeout()),
		Logger:  logger,
	}
	a.Engine = workflow.New(a.Backend, logger.Named("workflow"))
	a.Engine.EnforceRequirements = cfg.Workflow.EnforceRequirements

	if cfg.JournalEnabled() {
		conn, err := db.Open(db.Config{Workspace: workspace, Path: cfg.Journal.Path})
		if err != nil {
			return nil, fmt.Errorf("open journal db: %w", err)
		}
		if err := migrate.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate journal db: %w", err)
		}
		j := journal.New(conn)
		a.DB = conn
		a.Journal = &j
		a.Engine.Journal = j
	}
	return a, nil
}

// Handler builds the HTTP API for the app.
func (a *App) Handler() (http.Handler, error) {
	cfg := server.Config{
		Engine:   a.Engine,
		Backend:  a.Backend,
		BasePath: a.Config.Server.BasePath,
		Auth: server.AuthConfig{
			JWTSecret:          a.Config.Auth.JWTSecret,
			Issuer:             a.Config.Auth.Issuer,
			InsecureSkipVerify: a.Config.Auth.InsecureSkipVerify,
			DevLogin:           a.Config.Auth.DevLogin,
			Logger:             a.Logger.Named("auth"),
		},
		Logger: a.Logger.Named("http"),
	}
	if a.Journal != nil {
		cfg.Journal = *a.Journal
	}
	return server.New(cfg)
}

// StartWebhooks begins delivering successful transitions to the configured
// webhooks until ctx is done. It is a no-op without a journal.
func (a *App) StartWebhooks(ctx context.Context) {
	if a.Journal == nil {
		return
	}
	server.StartWebhooks(ctx, *a.Journal, a.Config.Webhooks, a.Logger.Named("webhooks"))
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
