package api

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"lostfound/pkg/apperror"
	"lostfound/pkg/common"
	"lostfound/pkg/logger"
	"lostfound/pkg/user"
)

type (
	UserRepo interface {
		EmailExists(context.Context, string) bool
		GetByEmailAndPass(context.Context, string, string) (*user.User, error)
		Add(context.Context, *user.User) (string, error)
	}

	SessionManager interface {
		CreateToken(context.Context, *user.User) (string, error)
		CleanupUserSessions(ctx context.Context, userId string) error
		SignOut(ctx context.Context, authHeader string) error
	}

	UserHandler struct {
		Repo           UserRepo
		SessionManager SessionManager
	}

	HttpUser struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

const minPasswordLen = 6

func NewUserHandler(r UserRepo, sm SessionManager) *UserHandler {
	return &UserHandler{
		Repo:           r,
		SessionManager: sm,
	}
}

func (uh UserHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	httpUser := new(HttpUser)
	err := common.ParseReqBody(r.Body, httpUser)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't parse request body as user: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}

	u, err := uh.Repo.GetByEmailAndPass(r.Context(), strings.TrimSpace(httpUser.Email), httpUser.Password)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't get the user by email `%s` and password: %v",
			httpUser.Email, err)
		common.WriteError(w, err)
		return
	}

	// Remove expired user session if there are any
	if err := uh.SessionManager.CleanupUserSessions(r.Context(), u.Id); err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't cleanup sessions for user `%s`, %v", httpUser.Email, err)
		common.WriteMsg(w, "failed managing user sessions", http.StatusInternalServerError)
		return
	}

	uh.sendToken(r.Context(), w, u, http.StatusOK)
}

func (uh UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	httpUser := new(HttpUser)
	err := common.ParseReqBody(r.Body, httpUser)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't parse request body as user: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}

	if err := httpUser.validate(); err != nil {
		common.WriteError(w, err)
		return
	}

	email := strings.TrimSpace(httpUser.Email)
	// Check if user already exists
	if uh.Repo.EmailExists(r.Context(), email) {
		logger.Log(r.Context()).Errorf("user/handlers: email %s already registered", email)
		common.WriteError(w, apperror.Conflict(`user "`+email+`" already exists`))
		return
	}

	salt := common.RandStringRunes(8)
	u := &user.User{
		Email:    email,
		Password: common.HashPass(httpUser.Password, salt),
		// Id is handled below
	}
	id, err := uh.Repo.Add(r.Context(), u)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't add user: %v", err)
		common.WriteError(w, err)
		return
	}
	u.Id = id

	uh.sendToken(r.Context(), w, u, http.StatusCreated)
}

// LogOut ends the session of the token in the Authorization header.
func (uh UserHandler) LogOut(w http.ResponseWriter, r *http.Request) {
	if err := uh.SessionManager.SignOut(r.Context(), r.Header.Get("Authorization")); err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: sign out failed: %v", err)
		common.WriteError(w, err)
		return
	}
	common.WriteMsg(w, "success", http.StatusOK)
}

func (hu *HttpUser) validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(hu.Email)); err != nil {
		return apperror.ValidationFailed("email", "email is invalid")
	}
	if len(hu.Password) < minPasswordLen {
		return apperror.ValidationFailed("password", "password is too short")
	}
	return nil
}

func (uh *UserHandler) sendToken(ctx context.Context, w http.ResponseWriter, u *user.User, status int) {
	token, err := uh.SessionManager.CreateToken(ctx, u)
	if err != nil {
		logger.Log(ctx).Errorf("user/handlers: can't create JWT token from user: %v", err)
		common.WriteMsg(w, "user authentication failed", http.StatusInternalServerError)
		return
	}

	tk := struct {
		Token string `json:"token"`
	}{token}
	w.WriteHeader(status)
	common.WriteRespJSON(w, tk)
}
