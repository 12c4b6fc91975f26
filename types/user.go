package types

import "time"

// User represents a library member.
// Members borrow books; deactivated members keep their loan history
// but cannot open new loans.
type User struct {
	// ID is the unique identifier of the member.
	ID int `json:"id" db:"id"`

	// LastName is the member's family name.
	LastName string `json:"nom" db:"last_name"`

	// FirstName is the member's given name.
	FirstName string `json:"prenom" db:"first_name"`

	// Email is the member's contact address. It is stored lower-cased
	// and is unique across members.
	Email string `json:"email" db:"email"`

	// RegisteredAt is the timestamp when the member was registered.
	// It is set by the server and never changes afterwards.
	RegisteredAt time.Time `json:"dateInscription" db:"registered_at"`

	// Active reports whether the member may open new loans.
	Active bool `json:"actif" db:"active"`
}

// CreateUserRequest is the payload accepted when registering a member.
type CreateUserRequest struct {
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
}

// UpdateUserRequest carries a partial update. Nil fields are left unchanged.
type UpdateUserRequest struct {
	LastName  *string `json:"nom,omitempty"`
	FirstName *string `json:"prenom,omitempty"`
	Email     *string `json:"email,omitempty"`
	Active    *bool   `json:"actif,omitempty"`
}
