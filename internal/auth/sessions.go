package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/store"
)

// Sessions keeps track of issued tokens so they can be revoked before they expire.
type Sessions interface {
	Create(ctx context.Context, identity models.Identity, ttl time.Duration) (*models.Session, error)
	// Touch records a request on the session. It returns nil when the session is
	// unknown, revoked or expired.
	Touch(ctx context.Context, id string) (*models.Session, error)
	// Revoke reports whether a session was actually removed.
	Revoke(ctx context.Context, id string) (bool, error)
	Close() error
}

// StoreSessions keeps sessions as documents under sessions/.
type StoreSessions struct {
	store store.Store
	now   func() time.Time
}

func NewStoreSessions(s store.Store) *StoreSessions {
	return &StoreSessions{store: s, now: time.Now}
}

func sessionPath(id string) string {
	return store.Join(store.SessionsCollection, id)
}

func (s *StoreSessions) Create(ctx context.Context, identity models.Identity, ttl time.Duration) (*models.Session, error) {
	now := s.now().UTC()
	session := &models.Session{
		ID:              uuid.NewString(),
		UID:             identity.UID,
		Email:           identity.Email,
		RequestCount:    1,
		LastRequestTime: now,
		CreatedTime:     now,
		ExpiresAt:       now.Add(ttl),
	}

	doc, err := store.Encode(session)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, sessionPath(session.ID), doc); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *StoreSessions) Touch(ctx context.Context, id string) (*models.Session, error) {
	doc, err := s.store.Get(ctx, sessionPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	var session models.Session
	if err := doc.Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}

	now := s.now().UTC()
	if !now.Before(session.ExpiresAt) {
		return nil, nil
	}

	session.RequestCount++
	session.LastRequestTime = now
	err = s.store.Update(ctx, store.Patch{
		Path: sessionPath(id),
		Set: map[string]any{
			"request_count":         session.RequestCount,
			"last_request_dttm_utc": session.LastRequestTime,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update session stats: %w", err)
	}
	return &session, nil
}

func (s *StoreSessions) Revoke(ctx context.Context, id string) (bool, error) {
	doc, err := s.store.Get(ctx, sessionPath(id))
	if err != nil {
		return false, fmt.Errorf("failed to fetch session: %w", err)
	}
	if doc == nil {
		return false, nil
	}
	if err := s.store.Remove(ctx, sessionPath(id)); err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}
	return true, nil
}

// Close is a no-op; the document store is owned by the caller.
func (s *StoreSessions) Close() error { return nil }
