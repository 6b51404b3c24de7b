package app

import (
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Sweeper       *service.Sweeper
	Observability *observability.Runtime
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, sweeper *service.Sweeper, runtime *observability.Runtime) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Sweeper: sweeper, Observability: runtime}
}
