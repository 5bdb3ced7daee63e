package handlers

import (
	"net/http"

	"shoecreatify/internal/models"
	"shoecreatify/internal/services"
	"shoecreatify/internal/utils"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (u *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := u.userService.RegisterUser(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, models.MessageResponse{
		Success: true,
		Message: "Registration successful. Check your email for the verification code.",
		Email:   user.Email,
	})
}

func (u *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Login
	if !decodeJSON(w, r, &creds) {
		return
	}

	token, user, err := u.userService.LoginUser(r.Context(), &creds)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.AuthResponse{Success: true, Token: token, User: user})
}

func (u *UserHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	user, err := u.userService.GetUserProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, user)
}
