package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"shoecreatify/internal/services"
	"shoecreatify/internal/utils"
)

var flowStatus = map[services.FlowErrorCode]int{
	services.CodeNotFound:                http.StatusNotFound,
	services.CodeExpired:                 http.StatusGone,
	services.CodeMismatch:                http.StatusBadRequest,
	services.CodeTooSoon:                 http.StatusTooManyRequests,
	services.CodeInvalidToken:            http.StatusUnauthorized,
	services.CodeTokenExpired:            http.StatusUnauthorized,
	services.CodePasswordPolicyViolation: http.StatusBadRequest,
	services.CodeDeliveryError:           http.StatusBadGateway,
}

var accountErrors = []struct {
	err     error
	code    string
	message string
	status  int
}{
	{services.ErrEmailTaken, "EMAIL_TAKEN", "An account with this email already exists", http.StatusConflict},
	{services.ErrInvalidCredentials, "INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized},
	{services.ErrEmailNotVerified, "EMAIL_NOT_VERIFIED", "Please verify your email before logging in", http.StatusForbidden},
	{services.ErrAlreadyVerified, "ALREADY_VERIFIED", "This email is already verified", http.StatusConflict},
	{services.ErrUserNotFound, "USER_NOT_FOUND", "User not found", http.StatusNotFound},
	{services.ErrInvalidPurpose, "VALIDATION_ERROR", "purpose must be REGISTRATION or PASSWORD_RESET", http.StatusBadRequest},
}

// writeError turns a service error into the JSON error body and status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var flowErr *services.FlowError
	if errors.As(err, &flowErr) {
		status, ok := flowStatus[flowErr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		if flowErr.Code == services.CodeTooSoon && flowErr.RetryAfter > 0 {
			secs := int(math.Ceil(flowErr.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		utils.SendJSONErrorCode(w, string(flowErr.Code), flowErr.Message, status)
		return
	}

	for _, ae := range accountErrors {
		if errors.Is(err, ae.err) {
			utils.SendJSONErrorCode(w, ae.code, ae.message, ae.status)
			return
		}
	}

	log.Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
	utils.SendJSONErrorCode(w, "INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
}
