package domain

type Role string

const (
	RoleUser          Role = "user"
	RoleBusinessOwner Role = "business_owner"
	RoleAdmin         Role = "admin"
)

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserBanned    UserStatus = "banned"
)

// Principal is the authenticated caller as asserted by the auth provider's token.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   Role
	Status UserStatus
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanWrite is false for suspended and banned accounts.
func (p Principal) CanWrite() bool {
	return p.UserID != "" && (p.Status == "" || p.Status == UserActive)
}
