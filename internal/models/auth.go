package models

import "time"

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email      string `json:"email" validate:"required,email"`
	ResetToken string `json:"resetToken" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Token      string `json:"token,omitempty"`
	RedirectTo string `json:"redirectTo,omitempty"`
	User       *User  `json:"user,omitempty"`
}

type ResetOTPResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	ResetToken string `json:"resetToken"`
}

type OTPStatus struct {
	Email             string     `json:"email"`
	Purpose           OTPPurpose `json:"purpose"`
	State             OTPState   `json:"state"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	ResendAvailableAt *time.Time `json:"resendAvailableAt,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

type OTPStatusResponse struct {
	Success bool `json:"success"`
	*OTPStatus
}
