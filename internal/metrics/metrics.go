package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// User Activity Metrics
	NewUsersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_new_users_total",
		Help: "Total number of new user registrations.",
	})
	TotalUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_total_users",
		Help: "Total number of registered users in the application.",
	})
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"status"}) // status: "success" or "failed"

	// OTP flow metrics, labelled by purpose: "REGISTRATION" or "PASSWORD_RESET"
	OTPIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_issued_total",
		Help: "Total number of one-time codes issued.",
	}, []string{"purpose"})
	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_verifications_total",
		Help: "Total number of OTP verification attempts by outcome.",
	}, []string{"purpose", "result"})
	OTPResendRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_resend_rejected_total",
		Help: "Total number of resend requests rejected by the cooldown.",
	}, []string{"purpose"})
	OTPDeliveryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_delivery_failures_total",
		Help: "Total number of OTP emails that could not be delivered.",
	}, []string{"purpose"})
	PasswordResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_password_resets_total",
		Help: "Total number of password reset redemptions by outcome.",
	}, []string{"result"})

	CleanupDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_cleanup_deleted_total",
		Help: "Total number of expired records removed by the cleanup job.",
	}, []string{"collection"})
)
