package middlewares

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"shoecreatify/internal/utils"
)

// AuthMiddleware accepts a Bearer token or the jwt cookie set by the OAuth callback.
func AuthMiddleware(issuer *utils.JWTIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				if c, err := r.Cookie("jwt"); err == nil {
					tokenString = "Bearer " + c.Value
				}
			}

			if tokenString == "" {
				utils.SendJSONError(w, "Missing token", http.StatusUnauthorized)
				return
			}

			// Extract the token from the "Bearer <token>" format
			if !strings.HasPrefix(tokenString, "Bearer ") {
				utils.SendJSONError(w, "Invalid token format", http.StatusUnauthorized)
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			claims, err := issuer.Parse(tokenString)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected session token")
				utils.SendJSONError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithUserID(r.Context(), claims.ID)))
		})
	}
}
