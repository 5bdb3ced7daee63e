package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/markbates/goth/gothic"
	"github.com/rs/zerolog/log"

	"shoecreatify/internal/services"
)

type AuthHandler struct {
	authService  services.AuthService
	frontendURL  string
	secureCookie bool
}

func NewAuthHandler(authService services.AuthService, frontendURL string, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, frontendURL: frontendURL, secureCookie: secureCookie}
}

func (a *AuthHandler) ProviderAuth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if provider == "" {
		log.Error().Msg("Provider not specified in URL")
		http.Error(w, "Provider not specified", http.StatusBadRequest)
		return
	}

	log.Info().Str("provider", provider).Msg("Initiating authentication with provider")
	gothic.BeginAuthHandler(w, r)
}

func (a *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	pUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		log.Error().Err(err).Msg("Error completing user authentication")
		http.Redirect(w, r, a.frontendURL+"/login?error=oauth", http.StatusTemporaryRedirect)
		return
	}

	token, _, err := a.authService.HandleLogin(r.Context(), pUser)
	if err != nil {
		log.Error().Err(err).Msg("Error handling login after provider authentication")
		http.Redirect(w, r, a.frontendURL+"/login?error=oauth", http.StatusTemporaryRedirect)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    token,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   86400,
	})
	log.Info().Str("provider", pUser.Provider).Msg("JWT cookie set after OAuth login")

	http.Redirect(w, r, a.frontendURL+"/profile", http.StatusTemporaryRedirect)
}
