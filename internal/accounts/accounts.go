// Package accounts is the administrative side of user management.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/repository"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrRoleImmutable = errors.New("a user's role cannot be changed")
)

type Config struct {
	IndustrialPrefix string
	AcademicPrefix   string
	// CodeAttempts bounds regeneration when a generated code is already taken.
	CodeAttempts int
}

func DefaultConfig() Config {
	return Config{
		IndustrialPrefix: "IND",
		AcademicPrefix:   "ACAD",
		CodeAttempts:     5,
	}
}

type Service struct {
	users  *repository.Users
	config Config
	intn   func(n int) int
}

func NewService(users *repository.Users, config Config) *Service {
	defaults := DefaultConfig()
	if config.IndustrialPrefix == "" {
		config.IndustrialPrefix = defaults.IndustrialPrefix
	}
	if config.AcademicPrefix == "" {
		config.AcademicPrefix = defaults.AcademicPrefix
	}
	if config.CodeAttempts < 1 {
		config.CodeAttempts = defaults.CodeAttempts
	}

	return &Service{
		users:  users,
		config: config,
		intn:   rand.IntN,
	}
}

func (s *Service) prefix(role models.Role) string {
	if role == models.RoleAcademicSupervisor {
		return s.config.AcademicPrefix
	}
	return s.config.IndustrialPrefix
}

// leadingLetters keeps the first n letters of s, upper cased. Names with no
// letters at all fall back to X.
func leadingLetters(s string, n int) string {
	out := make([]rune, 0, n)
	for _, r := range s {
		if len(out) == n {
			break
		}
		if unicode.IsLetter(r) {
			out = append(out, unicode.ToUpper(r))
		}
	}
	if len(out) == 0 {
		return "X"
	}
	return string(out)
}

// GenerateCode builds {PREFIX}-{first initial}{up to 4 last name letters}{0..99}.
func (s *Service) GenerateCode(firstName, lastName string, role models.Role) string {
	return fmt.Sprintf("%s-%s%s%d", s.prefix(role), leadingLetters(firstName, 1), leadingLetters(lastName, 4), s.intn(100))
}

func (s *Service) uniqueCode(ctx context.Context, rec *models.UserRecord) (string, error) {
	var code string
	for i := 0; i < s.config.CodeAttempts; i++ {
		code = s.GenerateCode(rec.FirstName, rec.LastName, rec.Role)

		holders, err := s.users.FindBySupervisorCode(ctx, code)
		if err != nil {
			return "", err
		}
		taken := false
		for _, h := range holders {
			if h.Profile().ID != rec.ID {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
		logger.Debug.Printf("Supervisor code %s already taken, regenerating", code)
	}

	logger.Error.Printf("Could not find a free supervisor code for %s after %d attempts, keeping %s", rec.ID, s.config.CodeAttempts, code)
	return code, nil
}

// Save creates or overwrites a user. New supervisors get a generated code; an
// existing supervisor saved without one keeps the code it already has.
func (s *Service) Save(ctx context.Context, rec *models.UserRecord) (models.User, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}

	var existing models.User
	if rec.ID == "" {
		rec.ID = s.users.NewID()
	} else {
		var err error
		existing, err = s.users.Get(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
	}

	if existing != nil && existing.Role() != rec.Role {
		return nil, ErrRoleImmutable
	}

	if rec.Role.IsSupervisor() && rec.SupervisorCode == "" {
		if sup, ok := existing.(models.Supervisor); ok && sup.Supervising().SupervisorCode != "" {
			rec.SupervisorCode = sup.Supervising().SupervisorCode
		} else {
			code, err := s.uniqueCode(ctx, rec)
			if err != nil {
				return nil, err
			}
			rec.SupervisorCode = code
		}
	}
	rec.SupervisorCode = strings.ToUpper(strings.TrimSpace(rec.SupervisorCode))

	u, err := rec.ToUser()
	if err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}

	if existing == nil {
		logger.Info.Printf("Created %s user %s", rec.Role, rec.ID)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// List returns all users, or only those with role when it is set.
func (s *Service) List(ctx context.Context, role models.Role) ([]models.User, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return all, nil
	}

	out := make([]models.User, 0, len(all))
	for _, u := range all {
		if u.Role() == role {
			out = append(out, u)
		}
	}
	return out, nil
}

// Delete removes the profile only. Credentials and sessions are left to expire.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info.Printf("Deleted user profile %s", id)
	return nil
}
