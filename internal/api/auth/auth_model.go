package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/bidmaster/bidmaster/internal/types"
)

// Claims are the custom claims carried by app-issued access tokens.
type Claims struct {
	UserID string `json:"uid"`
	Phone  string `json:"phn,omitempty"`
	Role   string `json:"rol"`
	jwt.RegisteredClaims
}

// ExternalClaims are the claims we verify on an external-identity ID token
// presented at /auth/external-login.
type ExternalClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone_number,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// RegisterRequest is the JSON body for local registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"` // buyer (default) or seller
}

// LoginRequest accepts either phone or email plus a password.
type LoginRequest struct {
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type SendOTPRequest struct {
	Phone string `json:"phone"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// ExternalLoginRequest carries the external-identity ID token. Role only
// applies when the login creates the account.
type ExternalLoginRequest struct {
	IDToken string `json:"id_token"`
	Role    string `json:"role,omitempty"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// AuthResponse is the common success shape for every login path.
type AuthResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Token   string      `json:"token"`
	User    *types.User `json:"user"`
}

// Credential is the single variant input of ResolveIdentity: exactly one of
// the fields is set.
type Credential struct {
	Password      *PasswordCredential
	ExternalToken *string
}

type PasswordCredential struct {
	Phone    string // canonical form, or empty when logging in by email
	Email    string
	Password string
}
