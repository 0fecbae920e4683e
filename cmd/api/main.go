package main

import (
	"log"

	"protected-docs/internal/bootstrap"
	"protected-docs/internal/shared/config"
	"protected-docs/internal/shared/server"
	"protected-docs/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer app.Close()

	addr := server.Addr(cfg.Port)
	telemetry.Info("api.start", map[string]any{"addr": addr, "env": cfg.Env, "store": cfg.ObjectStoreType})

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
