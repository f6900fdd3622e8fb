package domain

import (
	"fmt"
	"time"
)

type User struct {
	ID          int64      `json:"id"`
	Identifier  string     `json:"identifier"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Valid user roles
const (
	RoleSystemAdmin = "system_admin"
	RolePageAdmin   = "page_admin"
	RoleParent      = "parent"
)

// Account statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var validRoles = map[string]bool{
	RoleSystemAdmin: true,
	RolePageAdmin:   true,
	RoleParent:      true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

type UserInfo struct {
	ID          int64      `json:"id"`
	Identifier  string     `json:"identifier"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:          u.ID,
		Identifier:  u.Identifier,
		Name:        u.Name,
		Role:        u.Role,
		Status:      u.Status,
		LastLoginAt: u.LastLoginAt,
	}
}

type UpdateUserRequest struct {
	Name   *string `json:"name,omitempty"`
	Role   *string `json:"role,omitempty"`
	Status *string `json:"status,omitempty"`
}

func (r *UpdateUserRequest) Validate() error {
	if r.Role != nil && !validRoles[*r.Role] {
		return fmt.Errorf("invalid role")
	}
	if r.Status != nil && *r.Status != StatusActive && *r.Status != StatusInactive {
		return fmt.Errorf("invalid status")
	}
	return nil
}
