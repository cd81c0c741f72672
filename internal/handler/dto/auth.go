// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/chatrelay/chatrelay/internal/model"

// SignupRequest represents the request body for account creation.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a session token plus the public account view.
type AuthResponse struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

// UserResponse wraps the public account view.
type UserResponse struct {
	User model.PublicUser `json:"user"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
