// Package logbook implements the entry status workflow: students write drafts, submit
// them in bulk for approval, and supervisors approve or reject them.
package logbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/metrics"
	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/repository"
	"github.com/shrimpsizemoose/logbook/internal/store"
)

var (
	ErrEntryNotFound     = errors.New("Logbook entry not found.")
	ErrEntryLocked       = errors.New("This entry is awaiting review or approved and can no longer be edited.")
	ErrEntryNotSubmitted = errors.New("This entry has not been submitted for approval yet.")
)

type Service struct {
	entries *repository.Entries
}

func NewService(entries *repository.Entries) *Service {
	return &Service{entries: entries}
}

func (s *Service) List(ctx context.Context, studentID string) ([]models.LogbookEntry, error) {
	return s.entries.List(ctx, studentID)
}

// Save creates a draft when input has no id or the id is unknown. Otherwise the
// entry is edited in place: drafts stay drafts and rejected entries go back to
// pending approval.
func (s *Service) Save(ctx context.Context, input *models.EntryInput) (*models.LogbookEntry, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid entry: %w", err)
	}

	var existing *models.LogbookEntry
	if input.ID != "" {
		var err error
		existing, err = s.entries.Get(ctx, input.StudentID, input.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			logger.Debug.Printf("Entry %s/%s not found, creating a new one", input.StudentID, input.ID)
		}
	}

	if existing == nil {
		entry := &models.LogbookEntry{
			StudentID:     input.StudentID,
			Date:          input.Date,
			Week:          input.Week,
			Day:           input.Day,
			Tasks:         input.Tasks,
			SkillsLearned: input.SkillsLearned,
			Status:        models.StatusDraft,
		}
		if err := s.entries.Create(ctx, entry); err != nil {
			return nil, err
		}
		metrics.Transition("", string(models.StatusDraft))
		return entry, nil
	}

	if existing.Status.Locked() {
		return nil, ErrEntryLocked
	}

	status := existing.Status
	if status == models.StatusRejected {
		status = models.StatusPendingApproval
	}

	patch := s.entries.Patch(input.StudentID, input.ID, map[string]any{
		"date":          input.Date,
		"week":          input.Week,
		"day":           input.Day,
		"tasks":         input.Tasks,
		"skillsLearned": input.SkillsLearned,
		"status":        status,
	})
	if err := s.entries.Update(ctx, patch); err != nil {
		return nil, err
	}
	if status != existing.Status {
		metrics.Transition(string(existing.Status), string(status))
	}

	existing.Date = input.Date
	existing.Week = input.Week
	existing.Day = input.Day
	existing.Tasks = input.Tasks
	existing.SkillsLearned = input.SkillsLearned
	existing.Status = status
	return existing, nil
}

// SubmitForApproval moves every draft of the student to pending approval in one
// batched update and returns how many entries moved.
func (s *Service) SubmitForApproval(ctx context.Context, studentID string) (int, error) {
	entries, err := s.entries.List(ctx, studentID)
	if err != nil {
		return 0, err
	}

	var patches []store.Patch
	for _, e := range entries {
		if e.Status != models.StatusDraft {
			continue
		}
		patches = append(patches, s.entries.Patch(studentID, e.ID, map[string]any{
			"status": models.StatusPendingApproval,
		}))
	}
	if len(patches) == 0 {
		return 0, nil
	}

	if err := s.entries.Update(ctx, patches...); err != nil {
		return 0, err
	}
	for range patches {
		metrics.Transition(string(models.StatusDraft), string(models.StatusPendingApproval))
	}

	logger.Info.Printf("Student %s submitted %d entries for approval", studentID, len(patches))
	return len(patches), nil
}

// Review sets a supervisor decision on an entry. Feedback is only written when
// given. Drafts cannot be reviewed. Decided entries may be reviewed again; the
// last decision wins.
func (s *Service) Review(ctx context.Context, studentID, entryID string, input *models.ReviewInput) (*models.LogbookEntry, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid review: %w", err)
	}

	existing, err := s.entries.Get(ctx, studentID, entryID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrEntryNotFound
	}
	if existing.Status == models.StatusDraft {
		return nil, ErrEntryNotSubmitted
	}

	fields := map[string]any{"status": input.Status}
	if input.Feedback != nil {
		fields["supervisorFeedback"] = *input.Feedback
		existing.SupervisorFeedback = *input.Feedback
	}

	if err := s.entries.Update(ctx, s.entries.Patch(studentID, entryID, fields)); err != nil {
		return nil, err
	}
	metrics.Transition(string(existing.Status), string(input.Status))

	existing.Status = input.Status
	return existing, nil
}
