package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/export"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	ctx := context.Background()
	cfg := service.Config.Export

	writer, err := export.NewSheetsWriter(ctx, cfg.CredentialsFile)
	if err != nil {
		logger.Error.Fatalf("Failed to initialize Google Sheets client: %v", err)
	}

	targets := make([]export.SheetTarget, 0, len(cfg.Students))
	for _, s := range cfg.Students {
		targets = append(targets, export.SheetTarget{StudentID: s.StudentID, SheetName: s.SheetName})
	}

	exporter := export.NewGSheetExporter(export.SheetsConfig{
		SpreadsheetID:  cfg.SpreadsheetID,
		TimestampRange: cfg.TimestampRange,
		Targets:        targets,
	}, service.Users, service.Entries, writer)

	if cfg.Schedule == "" {
		if err := exporter.ExportAll(ctx); err != nil {
			logger.Error.Fatalf("Export failed: %v", err)
		}
		logger.Info.Printf("Exported %d logbooks", len(targets))
		return
	}

	scheduler, err := exporter.Schedule(cfg.Schedule)
	if err != nil {
		logger.Error.Fatalf("Failed to schedule export: %v", err)
	}
	logger.Info.Printf("Exporting %d logbooks on schedule %q", len(targets), cfg.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	scheduler.Stop()
	logger.Info.Println("Exporter stopped")
}
