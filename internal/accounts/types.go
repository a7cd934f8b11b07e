package accounts

import "time"

// Staff roles.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
)

// MinPasswordLength applies to every password set through the service.
const MinPasswordLength = 8

// Account is a staff member able to log in.
type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Role        string    `json:"role"`
	TeamID      string    `json:"team_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	LastLoginAt time.Time `json:"last_login_at,omitzero"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsAdmin reports whether the account has the admin role.
func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// CreateAccountRequest is the input for creating an account.
type CreateAccountRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"max=32"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=admin supervisor agent"`
	TeamID   string `json:"team_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateAccountRequest is the input for admin-level account updates.
type UpdateAccountRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin supervisor agent"`
	TeamID   *string `json:"team_id,omitempty" validate:"omitempty,uuid|len=0"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UpdateProfileRequest is the input for self-service profile updates.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// UpdatePasswordRequest is the input for password change.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ResetPasswordRequest is the input for admin password reset.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ListAccountsRequest filters the account list.
type ListAccountsRequest struct {
	Role     string
	TeamID   string
	IsActive *bool
	Query    string
	Limit    int
	Offset   int
}

// ListAccountsResponse wraps a list of accounts.
type ListAccountsResponse struct {
	Items []Account `json:"items"`
	Total int64     `json:"total"`
}
