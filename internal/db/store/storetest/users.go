package storetest

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/wadesk/internal/db/store"
)

func (s *Store) GetUserByID(_ context.Context, id pgtype.UUID) (store.User, error) {
	if err := s.fail("GetUserByID"); err != nil {
		return store.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id.Bytes]
	if !ok {
		return store.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	if err := s.fail("GetUserByEmail"); err != nil {
		return store.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return store.User{}, pgx.ErrNoRows
}

func (s *Store) CountUsers(context.Context) (int64, error) {
	if err := s.fail("CountUsers"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *Store) CreateUser(_ context.Context, arg store.CreateUserParams) (store.User, error) {
	if err := s.fail("CreateUser"); err != nil {
		return store.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, arg.Email) {
			return store.User{}, uniqueViolation("users_email_key")
		}
	}
	ts := now()
	u := store.User{
		ID:           newID(),
		Name:         arg.Name,
		Email:        arg.Email,
		Phone:        arg.Phone,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		TeamID:       arg.TeamID,
		IsActive:     arg.IsActive,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	s.users[u.ID.Bytes] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, arg store.UpdateUserParams) (store.User, error) {
	if err := s.fail("UpdateUser"); err != nil {
		return store.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[arg.ID.Bytes]
	if !ok {
		return store.User{}, pgx.ErrNoRows
	}
	if arg.Email.Valid {
		for id, other := range s.users {
			if id != arg.ID.Bytes && strings.EqualFold(other.Email, arg.Email.String) {
				return store.User{}, uniqueViolation("users_email_key")
			}
		}
		u.Email = arg.Email.String
	}
	if arg.Name.Valid {
		u.Name = arg.Name.String
	}
	u.Phone = orText(arg.Phone, u.Phone)
	if arg.Role.Valid {
		u.Role = arg.Role.String
	}
	if arg.SetTeam {
		u.TeamID = arg.TeamID
	}
	if arg.IsActive.Valid {
		u.IsActive = arg.IsActive.Bool
	}
	u.UpdatedAt = now()
	s.users[u.ID.Bytes] = u
	return u, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, arg store.UpdateUserPasswordParams) error {
	if err := s.fail("UpdateUserPassword"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[arg.ID.Bytes]
	if !ok {
		return nil
	}
	u.PasswordHash = arg.PasswordHash
	s.users[u.ID.Bytes] = u
	return nil
}

func (s *Store) TouchUserLastLogin(_ context.Context, id pgtype.UUID) error {
	if err := s.fail("TouchUserLastLogin"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id.Bytes]
	if ok {
		u.LastLoginAt = now()
		s.users[id.Bytes] = u
	}
	return nil
}

func (s *Store) filterUsers(arg store.ListUsersParams) []store.User {
	needle := ""
	if arg.Query.Valid {
		needle = strings.ToLower(strings.Trim(arg.Query.String, "%"))
	}
	var out []store.User
	for _, u := range s.users {
		if arg.Role.Valid && u.Role != arg.Role.String {
			continue
		}
		if arg.TeamID.Valid && u.TeamID != arg.TeamID {
			continue
		}
		if arg.IsActive.Valid && u.IsActive != arg.IsActive.Bool {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), needle) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (s *Store) ListUsers(_ context.Context, arg store.ListUsersParams) ([]store.User, error) {
	if err := s.fail("ListUsers"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.filterUsers(arg), arg.Limit, arg.Offset), nil
}

func (s *Store) CountFilteredUsers(_ context.Context, arg store.ListUsersParams) (int64, error) {
	if err := s.fail("CountFilteredUsers"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filterUsers(arg))), nil
}
