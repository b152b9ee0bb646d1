package http

import (
	"net/http"

	"divvy/internal/core"
	"divvy/internal/log"
)

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Plan        string `json:"plan"`
}

func viewUser(u *core.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Plan:        u.Plan,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.authenticator.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "user registered",
		log.FieldUserID, user.ID,
		log.FieldOperation, log.OpRegister,
	)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: viewUser(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "user logged in",
		log.FieldUserID, user.ID,
		log.FieldOperation, log.OpLogin,
	)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: viewUser(user)})
}
