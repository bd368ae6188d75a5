package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/store"
)

type Entries struct {
	store store.Store
}

func NewEntries(s store.Store) *Entries {
	return &Entries{store: s}
}

func entriesPath(studentID string) string {
	return store.Join(store.EntriesCollection, studentID)
}

func entryPath(studentID, entryID string) string {
	return store.Join(store.EntriesCollection, studentID, entryID)
}

func decodeEntry(studentID, id string, doc store.Document) (*models.LogbookEntry, error) {
	var e models.LogbookEntry
	if err := doc.Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode entry %s/%s: %w", studentID, id, err)
	}
	e.ID = id
	if e.StudentID == "" {
		e.StudentID = studentID
	}
	return &e, nil
}

// List returns the student's entries, newest date first.
func (r *Entries) List(ctx context.Context, studentID string) ([]models.LogbookEntry, error) {
	docs, err := r.store.List(ctx, entriesPath(studentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for %s: %w", studentID, err)
	}

	entries := make([]models.LogbookEntry, 0, len(docs))
	for id, doc := range docs {
		e, err := decodeEntry(studentID, id, doc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	// YYYY-MM-DD sorts lexically
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date > entries[j].Date
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Get returns nil and no error when the entry does not exist.
func (r *Entries) Get(ctx context.Context, studentID, entryID string) (*models.LogbookEntry, error) {
	doc, err := r.store.Get(ctx, entryPath(studentID, entryID))
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s/%s: %w", studentID, entryID, err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeEntry(studentID, entryID, doc)
}

// Create stores e under a fresh key and sets e.ID.
func (r *Entries) Create(ctx context.Context, e *models.LogbookEntry) error {
	e.ID = r.store.NewKey()

	doc, err := store.Encode(e)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, entryPath(e.StudentID, e.ID), doc); err != nil {
		return fmt.Errorf("failed to create entry for %s: %w", e.StudentID, err)
	}
	return nil
}

// Patch builds a partial update of a single entry.
func (r *Entries) Patch(studentID, entryID string, fields map[string]any) store.Patch {
	return store.Patch{Path: entryPath(studentID, entryID), Set: fields}
}

func (r *Entries) Update(ctx context.Context, patches ...store.Patch) error {
	if err := r.store.Update(ctx, patches...); err != nil {
		return fmt.Errorf("failed to update entries: %w", err)
	}
	return nil
}
