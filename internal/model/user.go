package model

import "time"

// User statuses.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusDeleted  = "deleted"
)

// User roles. Guests are created through invitations and inherit the
// inviter's company.
const (
	RoleUser  = "user"
	RoleGuest = "guest"
)

// User represents an account record as stored in the `users` table.
// Secrets (password hash, one-time codes) are tagged `json:"-"` so a User
// can never leak them when serialized.
//
// Fields:
//
//	ID                – primary key identifier.
//	Email             – unique email address (lower-cased).
//	PasswordHash      – bcrypt hash; empty for invited guests until they reset it.
//	Status            – pending | verified | deleted.
//	Role              – user | guest.
//	Code/Attempts     – email verification code and remaining tries.
//	ResetCode/Expires – password reset code and its expiration.
//	Personal          – name, lastname, nif and age.
//	Company           – optional company affiliation; CIF is the sharing key.
//	LogoKey           – object name of the uploaded logo.
//	LogoURL           – locator of the uploaded logo, signed again on every read.
type User struct {
	ID                  uint64       `json:"id"`
	Email               string       `json:"email"`
	PasswordHash        string       `json:"-"`
	Status              string       `json:"status"`
	Role                string       `json:"role"`
	Code                string       `json:"-"`
	Attempts            int          `json:"-"`
	ResetCode           string       `json:"-"`
	ResetCodeExpiration *time.Time   `json:"-"`
	Personal            PersonalData `json:"personalData"`
	Company             *Company     `json:"company,omitempty"`
	LogoKey             string       `json:"-"`
	LogoURL             string       `json:"logoUrl,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// PersonalData groups the onboarding personal fields.
type PersonalData struct {
	Name     string `json:"name,omitempty"`
	Lastname string `json:"lastname,omitempty"`
	NIF      string `json:"nif,omitempty"`
	Age      int    `json:"age,omitempty"`
}

// Company is the denormalized company affiliation of a user.
type Company struct {
	Name    string `json:"name"`
	CIF     string `json:"cif"`
	Address string `json:"address"`
}

// CompanyCIF returns the user's company tax id or "" when no company is set.
func (u *User) CompanyCIF() string {
	if u == nil || u.Company == nil {
		return ""
	}
	return u.Company.CIF
}

// DisplayName is the best human-readable label for the user.
func (u *User) DisplayName() string {
	if u.Personal.Name != "" {
		if u.Personal.Lastname != "" {
			return u.Personal.Name + " " + u.Personal.Lastname
		}
		return u.Personal.Name
	}
	return u.Email
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
