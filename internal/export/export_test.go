package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/repository"
	"github.com/shrimpsizemoose/logbook/internal/store/memory"
)

func sample() (*models.Student, []models.LogbookEntry) {
	student := &models.Student{Contact: models.Contact{ID: "s1", FirstName: "Ada", LastName: "Obi"}}
	entries := []models.LogbookEntry{
		{Date: "2024-01-02", Day: "Tuesday", Tasks: "Cabling\nracks", SkillsLearned: "Patience", Status: models.StatusApproved},
		{Date: "2024-01-01", Day: "Monday", Tasks: "Induction", SkillsLearned: "Safety,\r\nrules", Status: models.StatusDraft},
	}
	return student, entries
}

func TestNewTable(t *testing.T) {
	student, entries := sample()
	table := NewTable(student, entries)

	assert.Equal(t, "SIWES Logbook", table.Title)
	assert.Equal(t, "Ada Obi", table.StudentName)
	assert.Equal(t, "N/A", table.StudentID)
	assert.Equal(t, []string{"Date", "Day", "Tasks", "Skills Learned", "Status"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"2024-01-02", "Tuesday", "Cabling racks", "Patience", "Approved"}, table.Rows[0])
	assert.Equal(t, "Safety, rules", table.Rows[1][3])
	assert.Equal(t, "Ada_Obi_logbook.pdf", table.FileName("pdf"))

	student.StudentID = "MAT/001"
	assert.Equal(t, "MAT/001", NewTable(student, nil).StudentID)
}

func TestWriteCSV(t *testing.T) {
	student, entries := sample()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, NewTable(student, entries)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Skills Learned", records[0][3])
	assert.Equal(t, "Safety, rules", records[2][3])
}

func TestWritePDF(t *testing.T) {
	student, entries := sample()
	for i := 0; i < 80; i++ {
		entries = append(entries, models.LogbookEntry{
			Date: "2024-02-01", Day: "Thursday",
			Tasks:         strings.Repeat("long task description ", 10),
			SkillsLearned: "Überprüfung",
			Status:        models.StatusPendingApproval,
		})
	}

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, NewTable(student, entries)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) Clear(ctx context.Context, spreadsheetID, rng string) error {
	return m.Called(spreadsheetID, rng).Error(0)
}

func (m *MockWriter) Write(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	return m.Called(spreadsheetID, rng, values).Error(0)
}

func TestGSheetExporter(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryStore()
	users := repository.NewUsers(s)
	entries := repository.NewEntries(s)

	student, sampleEntries := sample()
	require.NoError(t, users.Save(ctx, student))
	for i := range sampleEntries {
		e := sampleEntries[i]
		e.StudentID = "s1"
		require.NoError(t, entries.Create(ctx, &e))
	}

	w := new(MockWriter)
	w.On("Clear", "sheet-id", "Ada").Return(nil)
	w.On("Write", "sheet-id", "Ada!A1", mock.MatchedBy(func(values [][]interface{}) bool {
		return len(values) == 7 && values[0][0] == "SIWES Logbook" && values[5][0] == "2024-01-02"
	})).Return(nil)
	w.On("Write", "sheet-id", "Status!B1", [][]interface{}{{"UPD: 3 March 10:30"}}).Return(nil)

	exporter := NewGSheetExporter(SheetsConfig{
		SpreadsheetID:  "sheet-id",
		TimestampRange: "Status!B1",
		Targets: []SheetTarget{
			{StudentID: "s1", SheetName: "Ada"},
			{StudentID: "missing", SheetName: "Ghost"},
		},
	}, users, entries, w)
	exporter.now = func() time.Time { return time.Date(2024, 3, 3, 10, 30, 0, 0, time.UTC) }

	err := exporter.ExportAll(ctx)
	require.Error(t, err, "the missing student is reported")
	assert.Contains(t, err.Error(), "student missing not found")

	w.AssertCalled(t, "Write", "sheet-id", "Ada!A1", mock.Anything)
	w.AssertCalled(t, "Write", "sheet-id", "Status!B1", mock.Anything)
	w.AssertNotCalled(t, "Clear", "sheet-id", "Ghost")
}

func TestGSheetExporterWriteFailure(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryStore()
	users := repository.NewUsers(s)
	student, _ := sample()
	require.NoError(t, users.Save(ctx, student))

	w := new(MockWriter)
	w.On("Clear", "id", "Ada").Return(errors.New("quota"))

	exporter := NewGSheetExporter(SheetsConfig{
		SpreadsheetID: "id",
		Targets:       []SheetTarget{{StudentID: "s1", SheetName: "Ada"}},
	}, users, repository.NewEntries(s), w)

	err := exporter.ExportStudent(ctx, SheetTarget{StudentID: "s1", SheetName: "Ada"})
	assert.ErrorContains(t, err, "quota")
}

func TestSchedule(t *testing.T) {
	exporter := NewGSheetExporter(SheetsConfig{}, nil, nil, new(MockWriter))

	scheduler, err := exporter.Schedule("*/5 * * * *")
	require.NoError(t, err)
	scheduler.Stop()

	_, err = exporter.Schedule("not a cron")
	assert.Error(t, err)
}
