package domain

import "time"

// Role is the privilege tier of an approved user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// Status is the approval state of a user account.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusBanned   Status = "banned"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusBanned:
		return true
	}
	return false
}

// Access is the (role, status) pair mutated atomically by admin operations.
type Access struct {
	Role   Role   `json:"role"`
	Status Status `json:"status"`
}

// User represents an identity tied 1:1 to a Discord account.
type User struct {
	ID            string     `json:"id"`
	DiscordID     string     `json:"discord_id"`
	Username      string     `json:"username"`
	Discriminator string     `json:"discriminator,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	Email         string     `json:"email,omitempty"`
	Role          Role       `json:"role"`
	Status        Status     `json:"status"`
	ApprovedBy    *string    `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	LastLogin     time.Time  `json:"last_login"`
	LastActivity  time.Time  `json:"last_activity"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (u *User) Access() Access {
	if u == nil {
		return Access{}
	}
	return Access{Role: u.Role, Status: u.Status}
}

func (u *User) IsBanned() bool {
	return u != nil && u.Status == StatusBanned
}

func (u *User) IsOwner() bool {
	return u != nil && u.Role == RoleOwner
}

// ExternalProfile is the identity payload delivered by the OAuth callback.
type ExternalProfile struct {
	ExternalID    string
	Username      string
	Discriminator string
	Avatar        string
	Email         string
}

// AccessChange describes one CAS transition on a user's role/status pair.
type AccessChange struct {
	UserID     string
	Expected   Access
	Next       Access
	ApprovedBy *string
	ApprovedAt *time.Time
}
