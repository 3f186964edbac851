package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent  UserRole = "STUDENT"
	RoleWarden   UserRole = "WARDEN"
	RoleSecurity UserRole = "SECURITY"
	RoleAdmin    UserRole = "ADMIN"
)

// User represents an application user stored in the users table.
// Hostel is populated for students and wardens; it is empty for
// security staff and admins.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Hostel       string     `db:"hostel" json:"hostel,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserView is the resolved projection of a user embedded in outpass
// detail responses.
type UserView struct {
	ID       string   `db:"id" json:"id"`
	FullName string   `db:"full_name" json:"full_name"`
	Email    string   `db:"email" json:"email"`
	Role     UserRole `db:"role" json:"role"`
	Hostel   string   `db:"hostel" json:"hostel,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
