package models

import (
	"time"
)

type Session struct {
	ID              string    `json:"id"`
	UID             string    `json:"uid"`
	Email           string    `json:"email"`
	RequestCount    int       `json:"request_count"`
	LastRequestTime time.Time `json:"last_request_dttm_utc"`
	CreatedTime     time.Time `json:"created_dttm_utc"`
	ExpiresAt       time.Time `json:"expires_dttm_utc"`
}

// Identity is the opaque authenticated principal handed out by the auth provider.
type Identity struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	SessionID string `json:"-"`
}
