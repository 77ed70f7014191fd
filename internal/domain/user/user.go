package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

type User struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	FullName     string     `json:"fullName"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	Phone        *string    `json:"phone"`
	BirthDate    *time.Time `json:"birthDate"`
	Age          int        `json:"age"`
	IsActive     bool       `json:"isActive"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// FullName is the stored display name derived from the two name parts.
func FullName(firstName, lastName string) string {
	return strings.TrimSpace(firstName + " " + lastName)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Changes is the partial column set an update writes. Nil means untouched.
type Changes struct {
	FirstName    *string
	LastName     *string
	FullName     *string
	Email        *string
	PasswordHash *string
	Phone        *string
	BirthDate    *time.Time
	Age          *int
	Role         *Role
	UpdatedAt    time.Time
}

// Apply copies every present change onto u.
func (c Changes) Apply(u User) User {
	if c.FirstName != nil {
		u.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		u.LastName = *c.LastName
	}
	if c.FullName != nil {
		u.FullName = *c.FullName
	}
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.Phone != nil {
		phone := *c.Phone
		u.Phone = &phone
	}
	if c.BirthDate != nil {
		bd := *c.BirthDate
		u.BirthDate = &bd
	}
	if c.Age != nil {
		u.Age = *c.Age
	}
	if c.Role != nil {
		u.Role = *c.Role
	}
	if !c.UpdatedAt.IsZero() {
		u.UpdatedAt = c.UpdatedAt
	}
	return u
}

// A factory to build a User from a validated create request. The caller has
// already hashed the password and derived the age.
func NewFromCreateRequest(req CreateUserRequest, passwordHash string, birthDate *time.Time, age int, now time.Time) User {
	role := RoleUser
	if req.Role != "" {
		role = Role(req.Role)
	}

	var phone *string
	if req.Phone != "" {
		p := req.Phone
		phone = &p
	}

	return User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		FullName:     FullName(req.FirstName, req.LastName),
		Email:        req.Email,
		PasswordHash: passwordHash,
		Phone:        phone,
		BirthDate:    birthDate,
		Age:          age,
		IsActive:     true,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
