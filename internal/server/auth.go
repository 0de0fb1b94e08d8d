package server

import (
	"net/http"

	"github.com/desertthunder/setlist/internal/auth"
)

// AuthHandler serves registration, login and the user listing.
type AuthHandler struct {
	auth  Authenticator
	guard Middleware
	errs  *responder
}

func (h *AuthHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/auth/register", Handler: http.HandlerFunc(h.register)},
		{Method: http.MethodPost, Path: "/api/auth/login", Handler: http.HandlerFunc(h.login)},
		{Method: http.MethodGet, Path: "/api/auth/users", Handler: h.guard(http.HandlerFunc(h.users))},
	}
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decode(w, r, &in); err != nil {
		h.errs.fail(w, r, err)
		return
	}

	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decode(w, r, &in); err != nil {
		h.errs.fail(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) users(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
