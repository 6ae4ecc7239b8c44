// Package auth handles login, registration, and the logged-in session of a
// workspace. The built-in roster is fixed; users who register are stored
// alongside the rest of the workspace data.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/madhatter5501/WorkOS/internal/state"
	"github.com/madhatter5501/WorkOS/kanban"
)

var (
	// ErrInvalidCredentials is returned when no user matches the email and password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("email already in use")

	// ErrUserNotFound is returned when editing an unknown or built-in user.
	ErrUserNotFound = errors.New("user not found")
)

// CapManageUsers is the right to edit registered accounts. Only admins hold it.
const CapManageUsers kanban.Capability = "manage_users"

// NewMemberRole is the job title given to self-registered users.
const NewMemberRole = "Nouveau Membre"

var hashCost = bcrypt.DefaultCost

// Service authenticates users and owns the session.
type Service struct {
	roster     []kanban.User
	registered *state.Collection[kanban.User]
	session    *state.Value[kanban.User]
	logger     *slog.Logger

	mu sync.Mutex // Serializes register so email uniqueness holds
}

// NewService hashes the roster's demo passwords and returns a service over the
// registered users and session.
func NewService(roster []kanban.User, passwords map[string]string, registered *state.Collection[kanban.User], session *state.Value[kanban.User], logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hashed := make([]kanban.User, 0, len(roster))
	for _, u := range roster {
		if pw := passwords[u.ID]; pw != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(pw), hashCost)
			if err != nil {
				return nil, fmt.Errorf("failed to hash password of %s: %w", u.ID, err)
			}
			u.PasswordHash = string(h)
		}
		hashed = append(hashed, u)
	}
	return &Service{
		roster:     hashed,
		registered: registered,
		session:    session,
		logger:     logger,
	}, nil
}

// Users returns the roster followed by registered users, without credentials.
func (s *Service) Users() []kanban.User {
	all := s.all()
	for i := range all {
		all[i] = all[i].Public()
	}
	return all
}

// UserByID looks a user up by id.
func (s *Service) UserByID(id string) (kanban.User, bool) {
	for _, u := range s.all() {
		if u.ID == id {
			return u.Public(), true
		}
	}
	return kanban.User{}, false
}

// Current returns the logged-in user. The account is re-read on each call so an
// admin's role change applies immediately.
func (s *Service) Current() (kanban.User, bool) {
	u, ok := s.session.Get()
	if !ok {
		return kanban.User{}, false
	}
	if fresh, found := s.UserByID(u.ID); found {
		return fresh, true
	}
	return u, true
}

// Login checks the credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (kanban.User, error) {
	email = normalizeEmail(email)
	for _, u := range s.all() {
		if normalizeEmail(u.Email) != email || u.PasswordHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			break
		}
		if err := s.session.Set(ctx, u.Public()); err != nil {
			return kanban.User{}, fmt.Errorf("failed to open session: %w", err)
		}
		s.logger.Info("User logged in", "id", u.ID, "role", u.SystemRole)
		return u.Public(), nil
	}
	s.logger.Warn("Login rejected", "email", email)
	return kanban.User{}, ErrInvalidCredentials
}

// Register creates a member account and logs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (kanban.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	for field, v := range map[string]string{"name": name, "email": email, "password": password} {
		if v == "" {
			return kanban.User{}, &kanban.ValidationError{Field: field, Message: "Tous les champs sont obligatoires."}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.all() {
		if normalizeEmail(u.Email) == email {
			return kanban.User{}, ErrEmailTaken
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return kanban.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	user := kanban.User{
		ID:           "u-" + uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Avatar:       "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random",
		Role:         NewMemberRole,
		SystemRole:   kanban.RoleMember,
	}
	err = s.registered.Mutate(ctx, func(users []kanban.User) ([]kanban.User, error) {
		return append(users, user), nil
	})
	if err != nil {
		return kanban.User{}, fmt.Errorf("failed to save account: %w", err)
	}
	s.logger.Info("User registered", "id", user.ID, "email", email)

	if err := s.session.Set(ctx, user.Public()); err != nil {
		return kanban.User{}, fmt.Errorf("failed to open session: %w", err)
	}
	return user.Public(), nil
}

// Logout closes the session. Other workspaces sharing the store log out too.
func (s *Service) Logout(ctx context.Context) error {
	u, ok := s.session.Get()
	if err := s.session.Clear(ctx); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if ok {
		s.logger.Info("User logged out", "id", u.ID)
	}
	return nil
}

// UserPatch holds the editable fields of an account. Nil fields are left unchanged.
type UserPatch struct {
	Name       *string          `json:"name,omitempty"`
	Role       *string          `json:"role,omitempty"`
	SystemRole *kanban.UserRole `json:"systemRole,omitempty"`
	Sector     *kanban.Sector   `json:"sector,omitempty"`
}

// UpdateUser edits a registered account. Built-in roster users cannot be edited.
func (s *Service) UpdateUser(ctx context.Context, actor kanban.User, id string, patch UserPatch) (kanban.User, error) {
	if !kanban.Can(actor.SystemRole, CapManageUsers) {
		return kanban.User{}, &kanban.PermissionError{Role: actor.SystemRole, Capability: CapManageUsers}
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return kanban.User{}, &kanban.ValidationError{Field: "name", Message: "Le nom est obligatoire."}
	}

	var updated kanban.User
	err := s.registered.Mutate(ctx, func(users []kanban.User) ([]kanban.User, error) {
		for i := range users {
			if users[i].ID != id {
				continue
			}
			if patch.Name != nil {
				users[i].Name = strings.TrimSpace(*patch.Name)
			}
			if patch.Role != nil {
				users[i].Role = *patch.Role
			}
			if patch.SystemRole != nil {
				users[i].SystemRole = kanban.NormalizeRole(string(*patch.SystemRole))
			}
			if patch.Sector != nil {
				users[i].Sector = *patch.Sector
			}
			updated = users[i]
			return users, nil
		}
		return nil, ErrUserNotFound
	})
	if err != nil {
		return kanban.User{}, err
	}

	if cur, ok := s.session.Get(); ok && cur.ID == id {
		if err := s.session.Set(ctx, updated.Public()); err != nil {
			s.logger.Warn("Failed to refresh session", "id", id, "error", err)
		}
	}
	s.logger.Info("User updated", "id", id, "by", actor.ID, "role", updated.SystemRole)
	return updated.Public(), nil
}

func (s *Service) all() []kanban.User {
	return append(append([]kanban.User(nil), s.roster...), s.registered.Snapshot()...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
