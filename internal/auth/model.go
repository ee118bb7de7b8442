package auth

import "time"

type Account struct {
	ID                 string
	Email              string
	PasswordHash       string
	Tenant             string
	Role               Role
	IsActive           bool
	RefreshFingerprint string
	ResetFingerprint   string
	ResetExpiresAt     *time.Time
	LastLoginAt        *time.Time
	CreatedBy          string
	UpdatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Profile is the public view of an account returned on login.
type Profile struct {
	Email  string `json:"email"`
	Tenant string `json:"tenant"`
	Role   Role   `json:"role"`
}

func (a Account) Profile() Profile {
	return Profile{Email: a.Email, Tenant: a.Tenant, Role: a.Role}
}

// Identity is what the gate attaches to an authenticated request.
type Identity struct {
	AccountID string
	Email     string
	Role      Role
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResult struct {
	Tokens
	User Profile `json:"user"`
}
