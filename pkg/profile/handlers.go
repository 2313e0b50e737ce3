package profile

import (
	"context"
	"net/http"

	"lostfound/pkg/common"
	"lostfound/pkg/logger"
	"lostfound/pkg/sessions"
	"lostfound/pkg/user"
)

type Profiles interface {
	Get(context.Context, *user.User) (*Profile, error)
	Update(context.Context, *user.User, Update) (*Profile, error)
}

type Handler struct {
	Profiles Profiles
}

func NewProfileHandler(p Profiles) *Handler {
	return &Handler{Profiles: p}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "not authorized", http.StatusUnauthorized)
		return
	}

	p, err := h.Profiles.Get(r.Context(), u)
	if err != nil {
		logger.Log(r.Context()).Errorf("profile/handlers: can't load profile of %s: %v", u.Id, err)
		common.WriteError(w, err)
		return
	}

	common.WriteRespJSON(w, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "not authorized", http.StatusUnauthorized)
		return
	}

	upd := Update{}
	if err := common.ParseReqBody(r.Body, &upd); err != nil {
		logger.Log(r.Context()).Errorf("profile/handlers: can't parse profile update: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}

	p, err := h.Profiles.Update(r.Context(), u, upd)
	if err != nil {
		logger.Log(r.Context()).Errorf("profile/handlers: can't update profile of %s: %v", u.Id, err)
		common.WriteError(w, err)
		return
	}

	common.WriteRespJSON(w, p)
}
