package models

import "time"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int       `json:"expires_in"` // seconds until token expiration
}

// Account is a user allowed to log in. PasswordHash is bcrypt.
type Account struct {
	UserID       string
	Email        string
	Role         string
	PasswordHash string
}
