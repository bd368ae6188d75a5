// Package repository maps domain records to store paths. It holds no business rules.
package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/store"
)

type Users struct {
	store store.Store
}

func NewUsers(s store.Store) *Users {
	return &Users{store: s}
}

func userPath(id string) string {
	return store.Join(store.UsersCollection, id)
}

func (r *Users) NewID() string { return r.store.NewKey() }

func decodeUser(id string, doc store.Document) (models.User, error) {
	var rec models.UserRecord
	if err := doc.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec.ToUser()
}

// Get returns nil and no error when the user does not exist.
func (r *Users) Get(ctx context.Context, id string) (models.User, error) {
	doc, err := r.store.Get(ctx, userPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeUser(id, doc)
}

// Save overwrites the whole profile.
func (r *Users) Save(ctx context.Context, u models.User) error {
	rec := models.RecordOf(u)
	if rec.ID == "" {
		return fmt.Errorf("user has no id")
	}

	doc, err := store.Encode(rec)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, userPath(rec.ID), doc); err != nil {
		return fmt.Errorf("failed to save user %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Users) Delete(ctx context.Context, id string) error {
	if err := r.store.Remove(ctx, userPath(id)); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}

// List returns every user ordered by last then first name. Records with an unknown
// role are logged and skipped.
func (r *Users) List(ctx context.Context) ([]models.User, error) {
	docs, err := r.store.List(ctx, store.UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return decodeUsers(docs), nil
}

func (r *Users) FindBySupervisorCode(ctx context.Context, code string) ([]models.User, error) {
	docs, err := r.store.FindEqual(ctx, store.UsersCollection, "supervisorCode", code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up supervisor code %s: %w", code, err)
	}
	return decodeUsers(docs), nil
}

func decodeUsers(docs map[string]store.Document) []models.User {
	users := make([]models.User, 0, len(docs))
	for id, doc := range docs {
		u, err := decodeUser(id, doc)
		if err != nil {
			logger.Error.Printf("Skipping user %s: %v", id, err)
			continue
		}
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool {
		a, b := users[i].Profile(), users[j].Profile()
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return users
}

// LinkPatches sets the student's back reference for the supervisor's kind and adds the
// student to the supervisor's assigned list. Both must be applied in one Update.
func LinkPatches(studentID, supervisorID string, kind models.Role) []store.Patch {
	field := "industrialSupervisorId"
	if kind == models.RoleAcademicSupervisor {
		field = "academicSupervisorId"
	}

	return []store.Patch{
		{
			Path: userPath(studentID),
			Set:  map[string]any{field: supervisorID},
		},
		{
			Path:  userPath(supervisorID),
			Union: map[string][]string{"assignedStudentIds": {studentID}},
		},
	}
}

func (r *Users) Update(ctx context.Context, patches ...store.Patch) error {
	if err := r.store.Update(ctx, patches...); err != nil {
		return fmt.Errorf("failed to update users: %w", err)
	}
	return nil
}
