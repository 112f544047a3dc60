package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
)

// Service handles login and staff account management.
type Service struct {
	repo      *Repository
	jwtIssuer string
	jwtKey    string
	accessTTL time.Duration
}

func NewService(repo *Repository, jwtIssuer, jwtKey string, accessTTL time.Duration) *Service {
	return &Service{repo: repo, jwtIssuer: jwtIssuer, jwtKey: jwtKey, accessTTL: accessTTL}
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, "", err
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)) != nil {
		return User{}, "", apperr.Authorization(apperr.ReasonRole, "invalid credentials")
	}
	token, _, err := auth.Issue(u.ID, u.Role, s.jwtIssuer, s.jwtKey, s.accessTTL)
	if err != nil {
		return User{}, "", err
	}
	return *u, token, nil
}

// RegisterStaff creates a teacher or admin account.
func (s *Service) RegisterStaff(ctx context.Context, name, email, password, role string) (User, error) {
	if name == "" || email == "" || password == "" {
		return User{}, apperr.Validation("all fields (name, email, password) are required")
	}
	if len(password) < 6 {
		return User{}, apperr.Validation("password must be at least 6 characters")
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if existing != nil {
		return User{}, apperr.Validation("user with this email already exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{Email: email, Role: role, Name: name}, string(hash))
}

// ResetPassword sets a new password for an existing account.
func (s *Service) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < 6 {
		return apperr.Validation("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return nil
}

// Resolve implements auth.Provider: it maps a verified user id to the
// Principal handed to authorization checks.
func (s *Service) Resolve(ctx context.Context, userID string) (auth.Principal, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return auth.Principal{}, err
	}
	if u == nil {
		return auth.Principal{}, apperr.NotFound("user not found")
	}
	p := auth.Principal{
		UserID:           u.ID,
		Role:             u.Role,
		Name:             u.Name,
		Email:            u.Email,
		AssignedSubjects: u.AssignedSubjects,
	}
	if u.StudentID != nil {
		p.StudentID = *u.StudentID
	}
	return p, nil
}
