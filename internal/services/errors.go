package services

import (
	"errors"
	"fmt"
	"time"
)

type FlowErrorCode string

const (
	CodeNotFound                FlowErrorCode = "NOT_FOUND"
	CodeExpired                 FlowErrorCode = "EXPIRED"
	CodeMismatch                FlowErrorCode = "MISMATCH"
	CodeTooSoon                 FlowErrorCode = "TOO_SOON"
	CodeInvalidToken            FlowErrorCode = "INVALID_TOKEN"
	CodeTokenExpired            FlowErrorCode = "TOKEN_EXPIRED"
	CodePasswordPolicyViolation FlowErrorCode = "PASSWORD_POLICY_VIOLATION"
	CodeDeliveryError           FlowErrorCode = "DELIVERY_ERROR"
)

// FlowError is a caller-facing failure of the verification flow. Two FlowErrors match
// under errors.Is when their codes are equal.
type FlowError struct {
	Code       FlowErrorCode
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	t, ok := target.(*FlowError)
	return ok && t.Code == e.Code
}

var (
	ErrOTPNotFound     = &FlowError{Code: CodeNotFound, Message: "No active verification code for this email. Please request a new one."}
	ErrOTPExpired      = &FlowError{Code: CodeExpired, Message: "The verification code has expired. Please request a new one."}
	ErrOTPMismatch     = &FlowError{Code: CodeMismatch, Message: "Invalid verification code. Please try again."}
	ErrTooSoon         = &FlowError{Code: CodeTooSoon, Message: "Please wait before requesting a new code."}
	ErrInvalidToken    = &FlowError{Code: CodeInvalidToken, Message: "The reset link is invalid or has already been used."}
	ErrTokenExpired    = &FlowError{Code: CodeTokenExpired, Message: "The reset session has expired. Please start again."}
	ErrPasswordPolicy  = &FlowError{Code: CodePasswordPolicyViolation, Message: "Password does not meet the requirements."}
	ErrDeliveryFailure = &FlowError{Code: CodeDeliveryError, Message: "We could not send the verification email. Please try again later."}
)

func tooSoon(retryAfter time.Duration) error {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &FlowError{
		Code:       CodeTooSoon,
		Message:    fmt.Sprintf("Please wait %d seconds before requesting a new code.", secs),
		RetryAfter: retryAfter,
	}
}

func passwordPolicy(cause error) error {
	return &FlowError{Code: CodePasswordPolicyViolation, Message: cause.Error(), Err: cause}
}

func deliveryFailed(cause error) error {
	return &FlowError{Code: CodeDeliveryError, Message: ErrDeliveryFailure.Message, Err: cause}
}

// Account-level failures outside the OTP taxonomy.
var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidPurpose     = errors.New("invalid otp purpose")
)
