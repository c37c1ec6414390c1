// Command relayserver runs the one-shot token relay as a standalone
// service. It sits between signed-in web clients and the auth backend's
// admin surface, so the service key never leaves the server side.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/dottedlabs/authbridge/relay"
)

type config struct {
	Addr       string `env:"RELAY_ADDR,default=:8090"`
	BackendURL string `env:"BACKEND_URL,required"`
	ServiceKey string `env:"BACKEND_SERVICE_KEY,required"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var cfg config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	admin := relay.NewHTTPAdmin(cfg.BackendURL, cfg.ServiceKey)
	server := relay.New(admin, relay.WithLogger(logger))

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("relay listening", "addr", cfg.Addr, "backend", cfg.BackendURL)
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}
