package repository

import (
	"context"
	"fmt"

	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/store"
)

type Evaluations struct {
	store store.Store
}

func NewEvaluations(s store.Store) *Evaluations {
	return &Evaluations{store: s}
}

func evaluationPath(studentID string) string {
	return store.Join(store.EvaluationsCollection, studentID)
}

// Get returns nil and no error when the student has not been evaluated.
func (r *Evaluations) Get(ctx context.Context, studentID string) (*models.Evaluation, error) {
	doc, err := r.store.Get(ctx, evaluationPath(studentID))
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation for %s: %w", studentID, err)
	}
	if doc == nil {
		return nil, nil
	}

	var e models.Evaluation
	if err := doc.Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode evaluation for %s: %w", studentID, err)
	}
	return &e, nil
}

// Put replaces the student's evaluation. The id is always the student id.
func (r *Evaluations) Put(ctx context.Context, e *models.Evaluation) error {
	e.ID = e.StudentID

	doc, err := store.Encode(e)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, evaluationPath(e.StudentID), doc); err != nil {
		return fmt.Errorf("failed to save evaluation for %s: %w", e.StudentID, err)
	}
	return nil
}
