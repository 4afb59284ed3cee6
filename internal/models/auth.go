package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RegisterRequest creates a pending account. Declaring the Employee role
// skips approval.
type RegisterRequest struct {
	Name             string   `json:"name" validate:"required,min=2,max=120"`
	Email            string   `json:"email" validate:"required,email"`
	Password         string   `json:"password" validate:"required,min=6,max=72"`
	Role             UserRole `json:"role" validate:"omitempty,oneof=Student Employee"`
	EnrollmentNumber string   `json:"enrollment_number" validate:"max=64"`
	HostelID         string   `json:"hostel_id" validate:"omitempty,uuid"`
	RoomNumber       string   `json:"room_number" validate:"max=32"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	Role               UserRole `json:"role"`
	HostelID           *string  `json:"hostel_id,omitempty"`
	EnrollmentNumber   *string  `json:"enrollment_number,omitempty"`
	ContributionStreak int      `json:"contribution_streak"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Name string
	Role UserRole
}
