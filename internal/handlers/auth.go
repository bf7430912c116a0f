package handlers

import (
	"net/http"

	"github.com/harborfun/fisharena/internal/auth"
	"github.com/harborfun/fisharena/internal/database"
	"github.com/harborfun/fisharena/internal/middleware"
	"github.com/harborfun/fisharena/internal/models"
)

type loginRequest struct {
	Code      string `json:"code"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login exchanges a platform login code for a session token, creating the
// user row on first sight.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Code == "" {
		http.Error(w, "code required", http.StatusBadRequest)
		return
	}

	identity, err := s.Provider.Exchange(r.Context(), req.Code)
	if err != nil {
		s.Logger.Warnf("login code exchange failed: %v", err)
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	if req.Nickname != "" {
		identity.Nickname = req.Nickname
	}
	if req.AvatarURL != "" {
		identity.AvatarURL = req.AvatarURL
	}

	user, err := database.UpsertUserByOpenID(r.Context(), identity.OpenID, identity.Nickname, identity.AvatarURL)
	if err != nil {
		s.Logger.Errorf("upsert user: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	token, err := auth.CreateJWT(user.ID.String(), user.Nickname)
	if err != nil {
		s.Logger.Errorf("create jwt: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Me returns the authenticated user's profile and aggregates.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := database.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
