package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/handlers"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	if err := service.BootstrapAdmin(context.Background()); err != nil {
		logger.Error.Fatalf("Failed to bootstrap admin: %v", err)
	}

	router := handlers.NewRouter(service)

	logger.Info.Printf("Starting logbook server on %s", service.Config.Server.Port)
	logger.Debug.Println("Requiring headers:")
	for _, h := range service.Config.API.RequiredHeaders {
		logger.Debug.Printf("  %s: %s", h.Name, h.Value)
	}
	if err := http.ListenAndServe(service.Config.Server.Port, router); err != nil {
		logger.Error.Fatalf("Logbook server failed: %v", err)
	}
}
