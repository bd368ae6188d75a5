// Package export renders a student's logbook as a table and writes it out as PDF,
// CSV or into a Google Sheet.
package export

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/logbook/internal/models"
)

const Title = "SIWES Logbook"

var Columns = []string{"Date", "Day", "Tasks", "Skills Learned", "Status"}

type Table struct {
	Title       string
	FirstName   string
	LastName    string
	StudentName string
	StudentID   string
	Columns     []string
	Rows        [][]string
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// NewTable lays out entries in the order given.
func NewTable(student *models.Student, entries []models.LogbookEntry) *Table {
	id := student.StudentID
	if id == "" {
		id = "N/A"
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Date,
			e.Day,
			flatten(e.Tasks),
			flatten(e.SkillsLearned),
			string(e.Status),
		})
	}

	return &Table{
		Title:       Title,
		FirstName:   student.FirstName,
		LastName:    student.LastName,
		StudentName: student.FullName(),
		StudentID:   id,
		Columns:     Columns,
		Rows:        rows,
	}
}

// FileName is {First}_{Last}_logbook.{ext}.
func (t *Table) FileName(ext string) string {
	return fmt.Sprintf("%s_%s_logbook.%s", t.FirstName, t.LastName, ext)
}

// Values is the table as sheet cells, with the title block above the header row.
func (t *Table) Values() [][]interface{} {
	values := [][]interface{}{
		{t.Title},
		{"Student: " + t.StudentName},
		{"Student ID: " + t.StudentID},
		{},
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	values = append(values, header)

	for _, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, c := range row {
			cells[i] = c
		}
		values = append(values, cells)
	}
	return values
}
