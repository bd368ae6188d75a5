// Package supervision links students to supervisors by code and records the
// academic supervisor's final evaluation.
package supervision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/metrics"
	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/repository"
)

var ErrNotSupervisor = errors.New("user is not a supervisor")

const dateFormat = "2006-01-02"

type linkMessages struct {
	notFound string
	mismatch string
}

var messages = map[models.Role]linkMessages{
	models.RoleIndustrialSupervisor: {
		notFound: "Invalid Supervisor ID.",
		mismatch: "This code does not belong to an Industrial Supervisor.",
	},
	models.RoleAcademicSupervisor: {
		notFound: "Invalid Academic Supervisor ID.",
		mismatch: "This code does not belong to an Academic Supervisor.",
	},
}

const (
	msgStudentNotFound = "Student not found."
	msgAmbiguousCode   = "This code is shared by more than one supervisor. Please contact an administrator."
)

type Service struct {
	users       *repository.Users
	evaluations *repository.Evaluations
	now         func() time.Time
}

func NewService(users *repository.Users, evaluations *repository.Evaluations) *Service {
	return &Service{
		users:       users,
		evaluations: evaluations,
		now:         time.Now,
	}
}

func (s *Service) LinkIndustrial(ctx context.Context, studentID, code string) (*models.LinkResult, error) {
	return s.link(ctx, studentID, code, models.RoleIndustrialSupervisor)
}

func (s *Service) LinkAcademic(ctx context.Context, studentID, code string) (*models.LinkResult, error) {
	return s.link(ctx, studentID, code, models.RoleAcademicSupervisor)
}

func kindLabel(kind models.Role) string {
	if kind == models.RoleAcademicSupervisor {
		return "academic"
	}
	return "industrial"
}

func (s *Service) link(ctx context.Context, studentID, code string, kind models.Role) (*models.LinkResult, error) {
	msg := messages[kind]
	fail := func(outcome, message string) (*models.LinkResult, error) {
		metrics.SupervisorLinkAttempts.WithLabelValues(kindLabel(kind), outcome).Inc()
		logger.Debug.Printf("Link %s for student %s with code %q: %s", outcome, studentID, code, message)
		return &models.LinkResult{Success: false, Message: message}, nil
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fail("not_found", msg.notFound)
	}

	matches, err := s.users.FindBySupervisorCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch {
	case len(matches) == 0:
		return fail("not_found", msg.notFound)
	case len(matches) > 1:
		logger.Error.Printf("Supervisor code %s is held by %d users", code, len(matches))
		return fail("ambiguous", msgAmbiguousCode)
	}

	supervisor := matches[0]
	if supervisor.Role() != kind {
		return fail("role_mismatch", msg.mismatch)
	}

	student, err := s.users.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if _, ok := student.(*models.Student); !ok {
		return fail("student_not_found", msgStudentNotFound)
	}

	supervisorID := supervisor.Profile().ID
	if err := s.users.Update(ctx, repository.LinkPatches(studentID, supervisorID, kind)...); err != nil {
		return nil, err
	}

	metrics.SupervisorLinkAttempts.WithLabelValues(kindLabel(kind), "linked").Inc()
	logger.Info.Printf("Linked student %s to %s supervisor %s", studentID, kindLabel(kind), supervisorID)

	rec := models.RecordOf(supervisor)
	return &models.LinkResult{
		Success:    true,
		Message:    fmt.Sprintf("Successfully linked to %s.", supervisor.Profile().FullName()),
		Supervisor: &rec,
	}, nil
}

// Students resolves the supervisor's assigned list. Ids without a student record are skipped.
func (s *Service) Students(ctx context.Context, supervisorID string) ([]*models.Student, error) {
	u, err := s.users.Get(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	sup, ok := u.(models.Supervisor)
	if !ok {
		return nil, ErrNotSupervisor
	}

	ids := sup.Supervising().AssignedStudentIDs
	students := make([]*models.Student, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		student, ok := u.(*models.Student)
		if !ok {
			logger.Debug.Printf("Supervisor %s lists %s which is not a student", supervisorID, id)
			continue
		}
		students = append(students, student)
	}
	return students, nil
}

// Supervises reports whether the student is on the supervisor's list.
func (s *Service) Supervises(ctx context.Context, supervisorID, studentID string) (bool, error) {
	u, err := s.users.Get(ctx, supervisorID)
	if err != nil {
		return false, err
	}
	sup, ok := u.(models.Supervisor)
	if !ok {
		return false, nil
	}
	return sup.Supervising().Assigned(studentID), nil
}

// Responsible reports whether the supervisor is the one the student is currently
// linked to for the supervisor's role. A re-linked student stays on the previous
// supervisor's list, so writes check the student's side as well.
func (s *Service) Responsible(ctx context.Context, supervisorID, studentID string) (bool, error) {
	u, err := s.users.Get(ctx, supervisorID)
	if err != nil {
		return false, err
	}
	sup, ok := u.(models.Supervisor)
	if !ok || !sup.Supervising().Assigned(studentID) {
		return false, nil
	}

	u, err = s.users.Get(ctx, studentID)
	if err != nil {
		return false, err
	}
	student, ok := u.(*models.Student)
	if !ok {
		return false, nil
	}

	if sup.Role() == models.RoleAcademicSupervisor {
		return student.AcademicSupervisorID == supervisorID, nil
	}
	return student.IndustrialSupervisorID == supervisorID, nil
}

// SaveEvaluation replaces the student's evaluation, stamping today's date.
func (s *Service) SaveEvaluation(ctx context.Context, e *models.Evaluation) (*models.Evaluation, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluation: %w", err)
	}

	e.Date = s.now().Format(dateFormat)
	if err := s.evaluations.Put(ctx, e); err != nil {
		return nil, err
	}

	metrics.EvaluationGradeHistogram.Observe(e.Grade)
	return e, nil
}

// Evaluation returns nil and no error when the student has not been graded.
func (s *Service) Evaluation(ctx context.Context, studentID string) (*models.Evaluation, error) {
	return s.evaluations.Get(ctx, studentID)
}
