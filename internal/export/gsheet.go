package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/metrics"
	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/repository"
)

// ValueWriter is the part of the Sheets API the exporter uses.
type ValueWriter interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Write(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
}

type SheetsWriter struct {
	svc *sheets.Service
}

func NewSheetsWriter(ctx context.Context, credentialsFile string) (*SheetsWriter, error) {
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsWriter{svc: svc}, nil
}

func (w *SheetsWriter) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := w.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (w *SheetsWriter) Write(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	_, err := w.svc.Spreadsheets.Values.Update(spreadsheetID, rng,
		&sheets.ValueRange{Values: values}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

type SheetTarget struct {
	StudentID string
	SheetName string
}

type SheetsConfig struct {
	SpreadsheetID  string
	TimestampRange string
	Targets        []SheetTarget
}

type GSheetExporter struct {
	config  SheetsConfig
	users   *repository.Users
	entries *repository.Entries
	writer  ValueWriter
	now     func() time.Time
}

func NewGSheetExporter(config SheetsConfig, users *repository.Users, entries *repository.Entries, writer ValueWriter) *GSheetExporter {
	return &GSheetExporter{
		config:  config,
		users:   users,
		entries: entries,
		writer:  writer,
		now:     time.Now,
	}
}

// ExportStudent replaces the contents of the target's tab with the student's logbook.
func (e *GSheetExporter) ExportStudent(ctx context.Context, target SheetTarget) error {
	u, err := e.users.Get(ctx, target.StudentID)
	if err != nil {
		return err
	}
	student, ok := u.(*models.Student)
	if !ok {
		return fmt.Errorf("student %s not found", target.StudentID)
	}

	entries, err := e.entries.List(ctx, target.StudentID)
	if err != nil {
		return err
	}

	table := NewTable(student, entries)
	if err := e.writer.Clear(ctx, e.config.SpreadsheetID, target.SheetName); err != nil {
		return fmt.Errorf("failed to clear %s: %w", target.SheetName, err)
	}
	if err := e.writer.Write(ctx, e.config.SpreadsheetID, target.SheetName+"!A1", table.Values()); err != nil {
		return fmt.Errorf("failed to write %s: %w", target.SheetName, err)
	}
	return nil
}

// ExportAll pushes every configured student, carrying on past failures.
func (e *GSheetExporter) ExportAll(ctx context.Context) error {
	var errs []error
	for _, target := range e.config.Targets {
		if err := e.ExportStudent(ctx, target); err != nil {
			logger.Error.Printf("Export of %s failed: %v", target.StudentID, err)
			metrics.SheetExportsTotal.WithLabelValues("failed").Inc()
			errs = append(errs, err)
			continue
		}
		metrics.SheetExportsTotal.WithLabelValues("ok").Inc()
	}

	if e.config.TimestampRange != "" {
		stamp := fmt.Sprintf("UPD: %s", e.now().Format("2 January 15:04"))
		if err := e.writer.Write(ctx, e.config.SpreadsheetID, e.config.TimestampRange, [][]interface{}{{stamp}}); err != nil {
			errs = append(errs, fmt.Errorf("failed to update timestamp: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Schedule runs ExportAll on the cron expression until the scheduler is stopped.
func (e *GSheetExporter) Schedule(cron string) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Cron(cron).Do(func() {
		if err := e.ExportAll(context.Background()); err != nil {
			logger.Error.Printf("Scheduled export failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule export: %w", err)
	}

	scheduler.StartAsync()
	return scheduler, nil
}
