package auth

import "github.com/marquezdaniela/reciclaje-municipal/internal/users"

// LoginRequest accepts either the username or the e-mail in Login.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the public citizen sign-up form.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,max=150"`
	FirstName       string `json:"first_name" validate:"required,max=30"`
	LastName        string `json:"last_name" validate:"required,max=30"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
	Address         string `json:"address" validate:"required,max=200"`
	Phone           string `json:"phone" validate:"required,max=15"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by every flow that establishes a session.
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
	Role         string         `json:"role"`
	Redirect     string         `json:"redirect,omitempty"`
}
