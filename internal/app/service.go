package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/accounts"
	"github.com/shrimpsizemoose/logbook/internal/auth"
	"github.com/shrimpsizemoose/logbook/internal/logbook"
	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/repository"
	"github.com/shrimpsizemoose/logbook/internal/store"
	"github.com/shrimpsizemoose/logbook/internal/supervision"
)

var (
	ErrProfileNotFound = errors.New("User profile not found. Please contact support.")
	ErrAdminSignup     = errors.New("Administrator accounts are created by an administrator.")
)

type Service struct {
	Config      *Config
	Store       store.Store
	Auth        *auth.Provider
	Users       *repository.Users
	Entries     *repository.Entries
	Logbook     *logbook.Service
	Supervision *supervision.Service
	Accounts    *accounts.Service
	Telegram    *repository.TelegramLinks

	unsubscribe func()
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	svc, err := NewServiceWithStore(context.Background(), config, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return svc, nil
}

// NewServiceWithStore wires every component around an already opened store.
func NewServiceWithStore(ctx context.Context, config *Config, s store.Store) (*Service, error) {
	provider, err := NewAuth(ctx, config, s)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	users := repository.NewUsers(s)
	entries := repository.NewEntries(s)
	evaluations := repository.NewEvaluations(s)

	svc := &Service{
		Config:      config,
		Store:       s,
		Auth:        provider,
		Users:       users,
		Entries:     entries,
		Logbook:     logbook.NewService(entries),
		Supervision: supervision.NewService(users, evaluations),
		Accounts: accounts.NewService(users, accounts.Config{
			IndustrialPrefix: config.Accounts.IndustrialPrefix,
			AcademicPrefix:   config.Accounts.AcademicPrefix,
			CodeAttempts:     config.Accounts.CodeAttempts,
		}),
		Telegram: repository.NewTelegramLinks(s),
	}

	svc.unsubscribe = provider.Subscribe(func(identity *models.Identity) {
		if identity == nil {
			logger.Debug.Printf("Identity signed out")
			return
		}
		logger.Debug.Printf("Identity %s signed in", identity.UID)
	})

	return svc, nil
}

// SignUpRequest is a new profile plus the password for its credentials.
type SignUpRequest struct {
	models.UserRecord
	Password string `json:"password"`
}

// Session is a signed in user.
type Session struct {
	*auth.Grant
	User models.User `json:"-"`
}

// SignUp registers credentials and creates the matching profile. The profile id is
// the identity's uid.
func (s *Service) SignUp(ctx context.Context, req *SignUpRequest) (*Session, error) {
	if req.Role == models.RoleAdmin {
		return nil, ErrAdminSignup
	}
	if err := req.UserRecord.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	grant, err := s.Auth.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	rec := req.UserRecord
	rec.ID = grant.Identity.UID
	rec.Email = grant.Identity.Email
	// links are only made through supervisor codes
	rec.IndustrialSupervisorID = ""
	rec.AcademicSupervisorID = ""
	rec.AssignedStudentIDs = nil
	rec.SupervisorCode = ""

	user, err := s.Accounts.Save(ctx, &rec)
	if err != nil {
		logger.Error.Printf("Credentials %s created without a profile: %v", rec.ID, err)
		s.Auth.Revoke(ctx, grant.Identity.SessionID)
		return nil, err
	}

	return &Session{Grant: grant, User: user}, nil
}

// SignIn authenticates and loads the profile. An identity without a profile is
// signed out again.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	grant, err := s.Auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	user, err := s.profile(ctx, &grant.Identity)
	if err != nil {
		return nil, err
	}
	return &Session{Grant: grant, User: user}, nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.Auth.SignOut(ctx, token)
}

// Authenticate resolves a bearer token to the signed in user.
func (s *Service) Authenticate(ctx context.Context, token string) (models.User, *models.Identity, error) {
	identity, err := s.Auth.Verify(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.profile(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	return user, identity, nil
}

func (s *Service) profile(ctx context.Context, identity *models.Identity) (models.User, error) {
	user, err := s.Users.Get(ctx, identity.UID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		logger.Error.Printf("Identity %s has no profile, signing out", identity.UID)
		if err := s.Auth.Revoke(ctx, identity.SessionID); err != nil {
			logger.Error.Printf("Failed to revoke session for %s: %v", identity.UID, err)
		}
		return nil, ErrProfileNotFound
	}
	return user, nil
}

// BearerToken extracts the token from the configured header.
func (s *Service) BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get(s.Config.Auth.TokenHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("Invalid authorization header format")
	}
	return strings.TrimPrefix(authHeader, "Bearer "), nil
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

// BootstrapAdmin creates the configured administrator once. It is a no-op when no
// admin is configured or the email is already registered.
func (s *Service) BootstrapAdmin(ctx context.Context) error {
	b := s.Config.Bootstrap
	if b.AdminEmail == "" || b.AdminPassword == "" {
		return nil
	}

	grant, err := s.Auth.SignUp(ctx, b.AdminEmail, b.AdminPassword)
	if errors.Is(err, auth.ErrEmailInUse) {
		logger.Debug.Printf("Bootstrap admin %s already registered", b.AdminEmail)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to register bootstrap admin: %w", err)
	}
	defer s.Auth.Revoke(ctx, grant.Identity.SessionID)

	first, last := b.AdminFirstName, b.AdminLastName
	if first == "" {
		first = "Site"
	}
	if last == "" {
		last = "Admin"
	}

	_, err = s.Accounts.Save(ctx, &models.UserRecord{
		ID:        grant.Identity.UID,
		FirstName: first,
		LastName:  last,
		Email:     grant.Identity.Email,
		Role:      models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin profile: %w", err)
	}

	logger.Info.Printf("Created bootstrap admin %s", grant.Identity.Email)
	return nil
}

func (s *Service) Close() error {
	var errs []error

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if err := s.Auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
