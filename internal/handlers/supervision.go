package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/models"
)

type SupervisionHandler struct {
	service *app.Service
}

func NewSupervisionHandler(service *app.Service) *SupervisionHandler {
	return &SupervisionHandler{service: service}
}

type linkRequest struct {
	Code string `json:"code"`
}

func (h *SupervisionHandler) HandleLinkIndustrial(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, models.RoleIndustrialSupervisor)
}

func (h *SupervisionHandler) HandleLinkAcademic(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, models.RoleAcademicSupervisor)
}

func (h *SupervisionHandler) link(w http.ResponseWriter, r *http.Request, kind models.Role) {
	var req linkRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	studentID := UserFrom(r.Context()).Profile().ID

	var (
		result *models.LinkResult
		err    error
	)
	if kind == models.RoleIndustrialSupervisor {
		result, err = h.service.Supervision.LinkIndustrial(r.Context(), studentID, req.Code)
	} else {
		result, err = h.service.Supervision.LinkAcademic(r.Context(), studentID, req.Code)
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	// failed links are a normal outcome reported in the body
	writeJSON(w, http.StatusOK, result)
}

func (h *SupervisionHandler) HandleStudents(w http.ResponseWriter, r *http.Request) {
	supervisorID := UserFrom(r.Context()).Profile().ID

	students, err := h.service.Supervision.Students(r.Context(), supervisorID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	rows := make([]models.UserRecord, 0, len(students))
	for _, s := range students {
		rows = append(rows, models.RecordOf(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": rows,
	})
}

// canView reports whether the signed in user may read the student's logbook and
// evaluation: admins, the student themselves and supervisors the student is linked to.
func (h *SupervisionHandler) canView(r *http.Request, studentID string) (bool, error) {
	user := UserFrom(r.Context())
	switch user.Role() {
	case models.RoleAdmin:
		return true, nil
	case models.RoleStudent:
		return user.Profile().ID == studentID, nil
	default:
		return h.service.Supervision.Supervises(r.Context(), user.Profile().ID, studentID)
	}
}

func (h *SupervisionHandler) guard(w http.ResponseWriter, r *http.Request, allowed func(*http.Request, string) (bool, error)) (string, bool) {
	studentID := r.PathValue("id")
	if studentID == "" {
		logger.Error.Printf("Failed to extract student from path: %s", r.URL.Path)
		writeError(w, http.StatusBadRequest, "Invalid student")
		return "", false
	}

	ok, err := allowed(r, studentID)
	if err != nil {
		handleError(w, r, err)
		return "", false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "Forbidden")
		return "", false
	}
	return studentID, true
}

// supervises is the stricter check used for writes: only the supervisor the student
// is currently linked to.
func (h *SupervisionHandler) supervises(r *http.Request, studentID string) (bool, error) {
	return h.service.Supervision.Responsible(r.Context(), UserFrom(r.Context()).Profile().ID, studentID)
}

func (h *SupervisionHandler) HandleStudentEntries(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.guard(w, r, h.canView)
	if !ok {
		return
	}

	entries, err := h.service.Logbook.List(r.Context(), studentID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": entries,
	})
}

func (h *SupervisionHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.guard(w, r, h.supervises)
	if !ok {
		return
	}

	var input models.ReviewInput
	if err := decode(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.service.Logbook.Review(r.Context(), studentID, r.PathValue("entryId"), &input)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *SupervisionHandler) HandleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.guard(w, r, h.canView)
	if !ok {
		return
	}

	evaluation, err := h.service.Supervision.Evaluation(r.Context(), studentID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if evaluation == nil {
		writeError(w, http.StatusNotFound, "No evaluation yet.")
		return
	}
	writeJSON(w, http.StatusOK, evaluation)
}

func (h *SupervisionHandler) HandlePutEvaluation(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.guard(w, r, h.supervises)
	if !ok {
		return
	}

	var input models.Evaluation
	if err := decode(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	input.StudentID = studentID
	input.AcademicSupervisorID = UserFrom(r.Context()).Profile().ID

	evaluation, err := h.service.Supervision.SaveEvaluation(r.Context(), &input)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluation)
}
