package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/logbook/internal/store"
)

// TelegramLink ties a telegram account to a logbook user.
type TelegramLink struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	LinkedAt     time.Time `json:"linkedAt"`
	SessionToken string    `json:"sessionToken"`
}

type TelegramLinks struct {
	store store.Store
}

func NewTelegramLinks(s store.Store) *TelegramLinks {
	return &TelegramLinks{store: s}
}

func telegramPath(tgID int64) string {
	return store.Join(store.TelegramCollection, strconv.FormatInt(tgID, 10))
}

// Get returns nil and no error when the account is not linked.
func (r *TelegramLinks) Get(ctx context.Context, tgID int64) (*TelegramLink, error) {
	doc, err := r.store.Get(ctx, telegramPath(tgID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch telegram link %d: %w", tgID, err)
	}
	if doc == nil {
		return nil, nil
	}

	var link TelegramLink
	if err := doc.Decode(&link); err != nil {
		return nil, fmt.Errorf("failed to decode telegram link %d: %w", tgID, err)
	}
	return &link, nil
}

func (r *TelegramLinks) Put(ctx context.Context, tgID int64, link *TelegramLink) error {
	doc, err := store.Encode(link)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, telegramPath(tgID), doc); err != nil {
		return fmt.Errorf("failed to save telegram link %d: %w", tgID, err)
	}
	return nil
}

func (r *TelegramLinks) Delete(ctx context.Context, tgID int64) error {
	if err := r.store.Remove(ctx, telegramPath(tgID)); err != nil {
		return fmt.Errorf("failed to remove telegram link %d: %w", tgID, err)
	}
	return nil
}
