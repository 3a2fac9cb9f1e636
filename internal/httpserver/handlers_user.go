package httpserver

import (
	"net/http"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/audit"
	"github.com/kwccc073/vuetify-shop-back/internal/auth"
)

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req account.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	acc, err := h.Auth.Register(r.Context(), req)
	h.record(r, req.Handle, audit.ActionRegister, acc.ID, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", nil)
}

type loginResponse struct {
	Token string `json:"token"`
	account.Profile
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req auth.Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Auth.Login(r.Context(), req)
	h.record(r, req.Handle, audit.ActionLogin, res.Account.ID, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", loginResponse{Token: res.Token, Profile: res.Account.Profile()})
}

func (h *handler) extend(w http.ResponseWriter, r *http.Request, s session) {
	token, err := h.Auth.Rotate(r.Context(), s.account, s.token)
	h.record(r, s.account.Handle, audit.ActionRotate, s.account.ID, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", token)
}

func (h *handler) profile(w http.ResponseWriter, _ *http.Request, s session) {
	writeOK(w, "", s.account.Profile())
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request, s session) {
	err := h.Auth.Logout(r.Context(), s.account, s.token)
	h.record(r, s.account.Handle, audit.ActionLogout, s.account.ID, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", nil)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request, s session) {
	var req auth.PasswordChange
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.Auth.ChangePassword(r.Context(), s.account, s.token, req)
	h.record(r, s.account.Handle, audit.ActionPasswordChange, s.account.ID, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", nil)
}

type cartRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

func (h *handler) adjustCart(w http.ResponseWriter, r *http.Request, s session) {
	var req cartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	total, err := h.Shop.AdjustCart(r.Context(), s.account, req.Product, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "cart updated", total)
}

func (h *handler) cart(w http.ResponseWriter, r *http.Request, s session) {
	lines, err := h.Shop.Cart(r.Context(), s.account)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", lines)
}
