package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shoecreatify/internal/handlers"
	"shoecreatify/internal/middlewares"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.NewPrometheusMiddleware().Instrument)
	r.Use(middlewares.CorsMiddleware(s.cfg.AllowedOrigins))

	ch := handlers.NewCommonHandler(s.db, s.redis)
	r.HandleFunc("/health", ch.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.registerAuthRoutes(r)

	return r
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	uh := handlers.NewUserHandler(s.userService)
	vh := handlers.NewVerificationHandler(s.verification)
	ah := handlers.NewAuthHandler(s.authService, s.cfg.FrontendURL, s.cfg.IsProd())
	auth := middlewares.AuthMiddleware(s.jwt)

	api := r.PathPrefix("/api/auth").Subrouter()
	api.Use(s.limiter.Middleware)

	api.HandleFunc("/register", uh.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/login", uh.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/verify-registration-otp", vh.VerifyRegistrationOTP).Methods("POST", "OPTIONS")
	api.HandleFunc("/resend-registration-otp", vh.ResendRegistrationOTP).Methods("POST", "OPTIONS")
	api.HandleFunc("/forgot-password", vh.ForgotPassword).Methods("POST", "OPTIONS")
	api.HandleFunc("/resend-reset-otp", vh.ForgotPassword).Methods("POST", "OPTIONS")
	api.HandleFunc("/verify-reset-otp", vh.VerifyResetOTP).Methods("POST", "OPTIONS")
	api.HandleFunc("/reset-password", vh.ResetPassword).Methods("POST", "OPTIONS")
	api.HandleFunc("/otp-status", vh.OTPStatus).Methods("GET", "OPTIONS")

	api.HandleFunc("/{provider}", ah.ProviderAuth).Methods("GET", "OPTIONS")
	api.HandleFunc("/{provider}/callback", ah.ProviderCallback).Methods("GET", "OPTIONS")

	r.Handle("/api/me", auth(http.HandlerFunc(uh.GetMyProfile))).Methods("GET", "OPTIONS")
}
