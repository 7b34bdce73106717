package domain

import "time"

type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor identifies the authenticated caller of a request. The core trusts
// it as given; credentials are verified upstream by the session middleware.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManageCatalog reports whether the actor may create or edit products.
func (a Actor) CanManageCatalog() bool {
	return a.Role == RoleAdmin || a.Role == RoleSeller
}
