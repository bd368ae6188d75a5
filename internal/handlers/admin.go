package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/models"
)

type AdminHandler struct {
	service *app.Service
}

func NewAdminHandler(service *app.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))

	users, err := h.service.Accounts.List(r.Context(), role)
	if err != nil {
		handleError(w, r, err)
		return
	}

	rows := make([]models.UserRecord, 0, len(users))
	for _, u := range users {
		rows = append(rows, models.RecordOf(u))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": rows,
	})
}

func (h *AdminHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var rec models.UserRecord
	if err := decode(r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec.ID = ""

	h.save(w, r, &rec, http.StatusCreated)
}

func (h *AdminHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.service.Accounts.Get(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}

	var rec models.UserRecord
	if err := decode(r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec.ID = id

	h.save(w, r, &rec, http.StatusOK)
}

func (h *AdminHandler) save(w http.ResponseWriter, r *http.Request, rec *models.UserRecord, status int) {
	u, err := h.service.Accounts.Save(r.Context(), rec)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, status, models.RecordOf(u))
}

func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Accounts.Delete(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
