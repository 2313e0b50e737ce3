package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"lostfound/pkg/apperror"
	. "lostfound/pkg/common"
	"lostfound/pkg/logger"
	"lostfound/pkg/sessions"
	"lostfound/pkg/user"
)

type (
	IUserRepo interface {
		GetById(context.Context, string) (*user.User, error)
	}
	ISessionManager interface {
		UserFromToken(context.Context, string) (*user.User, error)
	}
	Auth struct {
		UserRepo       IUserRepo
		SessionManager ISessionManager
	}
)

func NewAuthMiddleware(sm ISessionManager, ur IUserRepo) *Auth {
	return &Auth{
		UserRepo:       ur,
		SessionManager: sm,
	}
}

// Middleware puts the signed in user into the request context. Requests
// without a valid token go through anonymously.
func (auth Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		userFromToken, err := auth.SessionManager.UserFromToken(r.Context(), authHeader)
		if err != nil {
			logger.Log(r.Context()).Errorf("auth: can't get user from token: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		repoCtx, repoCtxCancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer repoCtxCancel()
		// the auth record is authoritative, so the email comes from the repo
		// and not from the token
		u, err := auth.UserRepo.GetById(repoCtx, userFromToken.Id)
		if errors.Is(err, apperror.ErrNotFound) {
			logger.Log(r.Context()).Errorf("auth: token user %s is gone: %v", userFromToken.Id, err)
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			logger.Log(r.Context()).Errorf("auth: can't get the user form repo: %v", err)
			WriteMsg(w, "user not found", http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r.WithContext(sessions.WithAuthUser(r.Context(), u)))
	})
}

// RequireUser rejects requests that carry no signed in user.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := sessions.GetAuthUser(r.Context()); err != nil {
			WriteError(w, apperror.Unauthorized("sign in first"))
			return
		}
		next(w, r)
	}
}
