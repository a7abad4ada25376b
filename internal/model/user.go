package model

import "time"

// User represents a platform account as listed in the admin dashboard.
type User struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name" binding:"required,min=2,max=100"`
	Email     string    `json:"email" binding:"required,email"`
	UserType  UserType  `json:"userType" binding:"required,oneof=student admin"`
	Roles     []string  `json:"roles,omitempty"`
	Batch     string    `json:"batchName,omitempty" binding:"omitempty,max=64"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
	Remember bool   `json:"remember"`
}

// LoginResponse is returned by the backend after a successful login.
type LoginResponse struct {
	Token       string   `json:"token"`
	User        User     `json:"user"`
	Permissions []string `json:"permissions,omitempty"`
}

// RegistrationForm is the student self-registration form.
type RegistrationForm struct {
	Name            string `json:"name" binding:"required,min=2,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone" binding:"omitempty,numeric,min=10,max=15"`
	Password        string `json:"password" binding:"required,min=6,max=128"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
	Batch           string `json:"batchName" binding:"required,max=64"`
}
