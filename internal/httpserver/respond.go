package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/auth"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/media"
	"github.com/kwccc073/vuetify-shop-back/internal/shop"
	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

const maxBodyBytes = 4 << 20

var (
	errBadRequestBody = errors.New("invalid request body")
	errMissingToken   = errors.New("missing or invalid bearer token")
	errMediaDisabled  = errors.New("image uploads are not configured")
)

// envelope is the body of every response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

type errorStatus struct {
	err    error
	status int
}

// errorStatuses maps domain errors to HTTP statuses; the first match wins.
var errorStatuses = []errorStatus{
	{errBadRequestBody, http.StatusBadRequest},
	{errMissingToken, http.StatusUnauthorized},
	{account.ErrDuplicate, http.StatusConflict},
	{account.ErrVersionConflict, http.StatusConflict},
	{auth.ErrAccountNotFound, http.StatusBadRequest},
	{auth.ErrInvalidPassword, http.StatusBadRequest},
	{auth.ErrInvalidSession, http.StatusUnauthorized},
	{auth.ErrSessionExpired, http.StatusUnauthorized},
	{auth.ErrForbidden, http.StatusForbidden},
	{catalog.ErrInvalidID, http.StatusBadRequest},
	{catalog.ErrNotFound, http.StatusNotFound},
	{shop.ErrProductNotForSale, http.StatusBadRequest},
	{shop.ErrInvalidQuantity, http.StatusBadRequest},
	{shop.ErrEmptyCart, http.StatusBadRequest},
	{shop.ErrContainsUnlistedProduct, http.StatusBadRequest},
	{media.ErrTooLarge, http.StatusBadRequest},
	{media.ErrUnsupportedType, http.StatusBadRequest},
}

// statusFor returns the status and client-facing message for err. Anything
// unmapped is a 500 with a generic message.
func statusFor(err error) (int, string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Message
	}
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequestBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, message string, result any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Result: result})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}
