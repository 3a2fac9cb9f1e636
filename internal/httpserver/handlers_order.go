package httpserver

import (
	"net/http"

	"github.com/kwccc073/vuetify-shop-back/internal/audit"
)

func (h *handler) placeOrder(w http.ResponseWriter, r *http.Request, s session) {
	o, err := h.Shop.PlaceOrder(r.Context(), s.account)
	h.record(r, s.account.Handle, audit.ActionOrderPlace, o.ID, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "order placed", o)
}

func (h *handler) orders(w http.ResponseWriter, r *http.Request, s session) {
	views, err := h.Shop.Orders(r.Context(), s.account)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", views)
}

func (h *handler) allOrders(w http.ResponseWriter, r *http.Request, _ session) {
	views, err := h.Shop.AllOrders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", views)
}
