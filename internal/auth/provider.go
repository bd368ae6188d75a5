// Package auth is the authentication boundary: password sign-up and sign-in,
// bearer tokens backed by revocable sessions, and identity change notifications.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/metrics"
	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/store"
)

// Messages are shown to users as is.
var (
	ErrPasswordRequired       = errors.New("Password is required.")
	ErrSignupPasswordRequired = errors.New("Password is required for signup.")
	ErrInvalidCredentials     = errors.New("Invalid email or password.")
	ErrEmailInUse             = errors.New("Email already in use.")
	ErrInvalidEmail           = errors.New("Please enter a valid email address.")
	ErrInvalidToken           = errors.New("Your session has expired. Please sign in again.")
)

type Config struct {
	Secret     []byte
	Issuer     string
	TTL        time.Duration
	BcryptCost int
}

// Grant is handed to the client after a successful sign-up or sign-in.
type Grant struct {
	Identity  models.Identity `json:"identity"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

type credential struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Provider struct {
	store    store.Store
	sessions Sessions
	config   Config
	now      func() time.Time

	mu          sync.Mutex
	nextSub     int
	subscribers map[int]func(*models.Identity)
}

func NewProvider(s store.Store, sessions Sessions, config Config) (*Provider, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("auth secret is not configured")
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.Issuer == "" {
		config.Issuer = "logbook"
	}

	return &Provider{
		store:       s,
		sessions:    sessions,
		config:      config,
		now:         time.Now,
		subscribers: make(map[int]func(*models.Identity)),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func credentialPath(uid string) string {
	return store.Join(store.CredentialsCollection, uid)
}

func (p *Provider) findCredential(ctx context.Context, email string) (*credential, error) {
	docs, err := p.store.FindEqual(ctx, store.CredentialsCollection, "email", email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up credentials: %w", err)
	}
	for _, doc := range docs {
		var c credential
		if err := doc.Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to decode credentials: %w", err)
		}
		return &c, nil
	}
	return nil, nil
}

// SignUp registers a new email and password and signs the new identity in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*Grant, error) {
	if password == "" {
		return nil, ErrSignupPasswordRequired
	}
	email = normalizeEmail(email)
	if err := validator.New().Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	existing, err := p.findCredential(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	c := credential{
		UID:          p.store.NewKey(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	doc, err := store.Encode(c)
	if err != nil {
		return nil, err
	}
	if err := p.store.Set(ctx, credentialPath(c.UID), doc); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	logger.Info.Printf("Registered identity %s", c.UID)
	return p.grant(ctx, c.UID, c.Email)
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*Grant, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}

	c, err := p.findCredential(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		logger.Debug.Printf("Password mismatch for %s", c.UID)
		return nil, ErrInvalidCredentials
	}

	return p.grant(ctx, c.UID, c.Email)
}

func (p *Provider) grant(ctx context.Context, uid, email string) (*Grant, error) {
	identity := models.Identity{UID: uid, Email: email}

	session, err := p.sessions.Create(ctx, identity, p.config.TTL)
	if err != nil {
		return nil, err
	}
	identity.SessionID = session.ID

	token, err := p.signToken(uid, email, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	metrics.ActiveSessions.Inc()
	p.notify(&identity)

	return &Grant{Identity: identity, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Verify resolves a bearer token to its identity, checking that its session is live.
func (p *Provider) Verify(ctx context.Context, token string) (*models.Identity, error) {
	c, err := p.parseToken(token)
	if err != nil {
		logger.Debug.Printf("Rejected token: %v", err)
		return nil, ErrInvalidToken
	}

	session, err := p.sessions.Touch(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UID != c.Subject {
		return nil, ErrInvalidToken
	}

	return &models.Identity{UID: c.Subject, Email: c.Email, SessionID: c.ID}, nil
}

// SignOut revokes the token's session. Signing out an invalid token is not an error.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	c, err := p.parseToken(token)
	if err != nil {
		p.notify(nil)
		return nil
	}
	return p.Revoke(ctx, c.ID)
}

// Revoke ends a session by id. Revoking an unknown session is not an error.
func (p *Provider) Revoke(ctx context.Context, sessionID string) error {
	removed, err := p.sessions.Revoke(ctx, sessionID)
	if err != nil {
		return err
	}
	if removed {
		metrics.ActiveSessions.Dec()
	}
	p.notify(nil)
	return nil
}

// Subscribe registers fn to receive the new identity after every sign-in and
// nil after every sign-out. The returned func removes the subscription.
func (p *Provider) Subscribe(fn func(*models.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *Provider) notify(identity *models.Identity) {
	p.mu.Lock()
	subs := make([]func(*models.Identity), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(identity)
	}
}

func (p *Provider) Close() error {
	return p.sessions.Close()
}
