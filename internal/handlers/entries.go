package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/export"
	"github.com/shrimpsizemoose/logbook/internal/models"
)

// EntryHandler serves the signed in student's own logbook.
type EntryHandler struct {
	service *app.Service
}

func NewEntryHandler(service *app.Service) *EntryHandler {
	return &EntryHandler{
		service: service,
	}
}

func (h *EntryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	student := UserFrom(r.Context())

	entries, err := h.service.Logbook.List(r.Context(), student.Profile().ID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": entries,
	})
}

func (h *EntryHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var input models.EntryInput
	if err := decode(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// students only ever write to their own logbook
	input.StudentID = UserFrom(r.Context()).Profile().ID

	entry, err := h.service.Logbook.Save(r.Context(), &input)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntryHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	studentID := UserFrom(r.Context()).Profile().ID

	moved, err := h.service.Logbook.SubmitForApproval(r.Context(), studentID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	logger.Debug.Printf("Student %s submitted %d entries", studentID, moved)
	writeJSON(w, http.StatusOK, map[string]int{"submitted": moved})
}

func (h *EntryHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	student, ok := UserFrom(r.Context()).(*models.Student)
	if !ok {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pdf"
	}
	if format != "pdf" && format != "csv" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported export format %q", format))
		return
	}

	entries, err := h.service.Logbook.List(r.Context(), student.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	table := export.NewTable(student, entries)

	var buf bytes.Buffer
	contentType := "application/pdf"
	if format == "csv" {
		contentType = "text/csv"
		err = export.WriteCSV(&buf, table)
	} else {
		err = export.WritePDF(&buf, table)
	}
	if err != nil {
		logger.Error.Printf("Failed to render %s export for %s: %v", format, student.ID, err)
		writeError(w, http.StatusInternalServerError, genericError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table.FileName(format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
