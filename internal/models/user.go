package models

import "time"

// User represents an account in the credential store.
type User struct {
	ID                       string     `json:"id"`
	Email                    string     `json:"email"`
	PasswordHash             string     `json:"-"` // Never expose this to the client
	FirstName                string     `json:"firstName,omitempty"`
	LastName                 string     `json:"lastName,omitempty"`
	Image                    string     `json:"image,omitempty"`
	Color                    *int       `json:"color,omitempty"`
	ProfileSetup             bool       `json:"profileSetup"`
	IsVerified               bool       `json:"isVerified"`
	VerificationToken        string     `json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

// Identity is the minimal view returned before an account is verified.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the subset of user fields safe to return to clients.
type Profile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	ProfileSetup bool   `json:"profileSetup"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Image        string `json:"image,omitempty"`
	Color        *int   `json:"color,omitempty"`
}

// Identity returns the id/email pair of the user.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email}
}

// Profile returns the client-facing view of the user.
func (u User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		Email:        u.Email,
		ProfileSetup: u.ProfileSetup,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Image:        u.Image,
		Color:        u.Color,
	}
}

// VerificationExpired reports whether the stored verification token has
// expired at now. A user without an expiry is treated as expired.
func (u User) VerificationExpired(now time.Time) bool {
	if u.VerificationTokenExpires == nil {
		return true
	}
	return now.After(*u.VerificationTokenExpires)
}

// AccountStats is a point-in-time count of accounts by verification state.
type AccountStats struct {
	Total      int64 `json:"total"`
	Verified   int64 `json:"verified"`
	Unverified int64 `json:"unverified"`
}
