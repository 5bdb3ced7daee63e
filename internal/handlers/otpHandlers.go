package handlers

import (
	"net/http"
	"strings"

	"shoecreatify/internal/models"
	"shoecreatify/internal/services"
	"shoecreatify/internal/utils"
)

// VerificationHandler serves the OTP endpoints of both flows.
type VerificationHandler struct {
	verification services.VerificationService
}

func NewVerificationHandler(verification services.VerificationService) *VerificationHandler {
	return &VerificationHandler{verification: verification}
}

func (h *VerificationHandler) VerifyRegistrationOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.verification.VerifyRegistration(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *VerificationHandler) ResendRegistrationOTP(w http.ResponseWriter, r *http.Request) {
	var req models.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.verification.ResendRegistration(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "A new verification code has been sent to your email."})
}

// ForgotPassword also serves resend-reset-otp; both go through the resend cooldown.
func (h *VerificationHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.verification.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.MessageResponse{
		Success: true,
		Message: "If an account exists for this email, a reset code has been sent.",
	})
}

func (h *VerificationHandler) VerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.verification.VerifyReset(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.ResetOTPResponse{
		Success:    true,
		Message:    "Code verified. You can now choose a new password.",
		ResetToken: token,
	})
}

func (h *VerificationHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.verification.ResetPassword(r.Context(), &req); err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "Password has been reset. You can now log in."})
}

func (h *VerificationHandler) OTPStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := strings.TrimSpace(q.Get("email"))
	if !utils.IsValidEmail(email) {
		utils.SendJSONErrorCode(w, "VALIDATION_ERROR", "Please enter a valid email address", http.StatusBadRequest)
		return
	}
	purpose := models.OTPPurpose(strings.ToUpper(q.Get("purpose")))
	if purpose == "" {
		purpose = models.PurposeRegistration
	}

	status, err := h.verification.Status(r.Context(), email, purpose)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.OTPStatusResponse{Success: true, OTPStatus: status})
}
