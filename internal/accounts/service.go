// Package accounts provides staff account and credential management.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
)

// Queries is the subset of store.Queries used by the service.
type Queries interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, arg store.CreateUserParams) (store.User, error)
	UpdateUser(ctx context.Context, arg store.UpdateUserParams) (store.User, error)
	UpdateUserPassword(ctx context.Context, arg store.UpdateUserPasswordParams) error
	TouchUserLastLogin(ctx context.Context, id pgtype.UUID) error
	ListUsers(ctx context.Context, arg store.ListUsersParams) ([]store.User, error)
	CountFilteredUsers(ctx context.Context, arg store.ListUsersParams) (int64, error)
}

// Service provides account (credential) management for staff.
type Service struct {
	queries Queries
	logger  *slog.Logger
	cost    int
}

// Errors returned by account operations.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidRole        = errors.New("invalid role")
)

// NewService creates a new accounts service.
func NewService(log *slog.Logger, queries Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "accounts")),
		cost:    bcrypt.DefaultCost,
	}
}

// Get returns an account by user id.
func (s *Service) Get(ctx context.Context, userID string) (Account, error) {
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return Account{}, err
	}
	row, err := s.queries.GetUserByID(ctx, pgID)
	if err != nil {
		return Account{}, notFound(err)
	}
	return toAccount(row), nil
}

// CheckActive fails unless userID names an active account.
func (s *Service) CheckActive(ctx context.Context, userID string) error {
	account, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !account.IsActive {
		return ErrInactiveAccount
	}
	return nil
}

// Login authenticates by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return Account{}, ErrInvalidCredentials
	}
	row, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !row.IsActive {
		return Account{}, ErrInactiveAccount
	}
	if err := s.queries.TouchUserLastLogin(ctx, row.ID); err != nil {
		s.logger.Warn("touch last login failed", slog.Any("error", err))
	}
	return toAccount(row), nil
}

// List returns accounts matching req.
func (s *Service) List(ctx context.Context, req ListAccountsRequest) (ListAccountsResponse, error) {
	limit, offset := db.ClampPage(req.Limit, req.Offset)
	teamID, err := db.ParseOptionalUUID(req.TeamID)
	if err != nil {
		return ListAccountsResponse{}, err
	}
	params := store.ListUsersParams{
		Role:   db.Text(req.Role),
		TeamID: teamID,
		Query:  db.LikePattern(req.Query),
		Limit:  limit,
		Offset: offset,
	}
	if req.IsActive != nil {
		params.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}
	rows, err := s.queries.ListUsers(ctx, params)
	if err != nil {
		return ListAccountsResponse{}, err
	}
	total, err := s.queries.CountFilteredUsers(ctx, params)
	if err != nil {
		return ListAccountsResponse{}, err
	}
	items := make([]Account, 0, len(rows))
	for _, row := range rows {
		items = append(items, toAccount(row))
	}
	return ListAccountsResponse{Items: items, Total: total}, nil
}

// Create creates a new staff account.
func (s *Service) Create(ctx context.Context, req CreateAccountRequest) (Account, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		return Account{}, errors.New("name and email are required")
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = RoleAgent
	}
	if !ValidRole(role) {
		return Account{}, ErrInvalidRole
	}
	teamID, err := db.ParseOptionalUUID(req.TeamID)
	if err != nil {
		return Account{}, err
	}
	hashed, err := s.hash(req.Password)
	if err != nil {
		return Account{}, err
	}
	row, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Name:         name,
		Email:        email,
		Phone:        db.Text(req.Phone),
		PasswordHash: hashed,
		Role:         role,
		TeamID:       teamID,
		IsActive:     true,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, err
	}
	return toAccount(row), nil
}

// UpdateAdmin updates account fields as admin.
func (s *Service) UpdateAdmin(ctx context.Context, userID string, req UpdateAccountRequest) (Account, error) {
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return Account{}, err
	}
	params := store.UpdateUserParams{ID: pgID}
	if req.Name != nil {
		params.Name = db.Text(*req.Name)
	}
	if req.Email != nil {
		params.Email = db.Text(strings.ToLower(*req.Email))
	}
	if req.Phone != nil {
		params.Phone = pgtype.Text{String: strings.TrimSpace(*req.Phone), Valid: true}
	}
	if req.Role != nil {
		if !ValidRole(*req.Role) {
			return Account{}, ErrInvalidRole
		}
		params.Role = db.Text(*req.Role)
	}
	if req.TeamID != nil {
		if params.TeamID, err = db.ParseOptionalUUID(*req.TeamID); err != nil {
			return Account{}, err
		}
		params.SetTeam = true
	}
	if req.IsActive != nil {
		params.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}
	return s.update(ctx, params)
}

// UpdateProfile updates the caller's own name and phone.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (Account, error) {
	return s.UpdateAdmin(ctx, userID, UpdateAccountRequest{Name: req.Name, Phone: req.Phone})
}

// Deactivate soft-deletes an account.
func (s *Service) Deactivate(ctx context.Context, userID string) (Account, error) {
	inactive := false
	return s.UpdateAdmin(ctx, userID, UpdateAccountRequest{IsActive: &inactive})
}

func (s *Service) update(ctx context.Context, params store.UpdateUserParams) (Account, error) {
	row, err := s.queries.UpdateUser(ctx, params)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, notFound(err)
	}
	return toAccount(row), nil
}

// UpdatePassword changes the caller's password after checking the current one.
func (s *Service) UpdatePassword(ctx context.Context, userID string, req UpdatePasswordRequest) error {
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	row, err := s.queries.GetUserByID(ctx, pgID)
	if err != nil {
		return notFound(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidPassword
	}
	return s.setPassword(ctx, pgID, req.NewPassword)
}

// ResetPassword sets a new password without checking the old one.
func (s *Service) ResetPassword(ctx context.Context, userID string, req ResetPasswordRequest) error {
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	if _, err := s.queries.GetUserByID(ctx, pgID); err != nil {
		return notFound(err)
	}
	return s.setPassword(ctx, pgID, req.NewPassword)
}

func (s *Service) setPassword(ctx context.Context, id pgtype.UUID, password string) error {
	hashed, err := s.hash(password)
	if err != nil {
		return err
	}
	return s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{ID: id, PasswordHash: hashed})
}

func (s *Service) hash(password string) (string, error) {
	if len(strings.TrimSpace(password)) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// EnsureAdmin creates the first admin account when no account exists.
// created is false when accounts were already present.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	count, err := s.queries.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return false, errors.New("admin email/password required in config.toml")
	}
	if _, err := s.Create(ctx, CreateAccountRequest{Name: name, Email: email, Password: password, Role: RoleAdmin}); err != nil {
		return false, err
	}
	s.logger.Info("admin user created", slog.String("email", email))
	return true, nil
}

// ValidRole reports whether role is a staff role.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSupervisor, RoleAgent:
		return true
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAccountNotFound
	}
	return err
}

func toAccount(row store.User) Account {
	return Account{
		ID:          db.UUIDString(row.ID),
		Name:        row.Name,
		Email:       row.Email,
		Phone:       db.TextToString(row.Phone),
		Role:        row.Role,
		TeamID:      db.UUIDString(row.TeamID),
		IsActive:    row.IsActive,
		LastLoginAt: db.TimeFromPg(row.LastLoginAt),
		CreatedAt:   db.TimeFromPg(row.CreatedAt),
		UpdatedAt:   db.TimeFromPg(row.UpdatedAt),
	}
}
