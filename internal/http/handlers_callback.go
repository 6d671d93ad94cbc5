package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/stokehq/genrelay/internal/service"
)

// maxCallbackBody caps inbound callback payloads.
const maxCallbackBody = 1 << 20

// CallbackHandlers receives provider push notifications.
type CallbackHandlers struct {
	Svc *service.CallbackService
}

// Receive ingests one provider notification. Unroutable payloads are
// acknowledged with 200 so the provider stops redelivering them; only a store
// or delivery failure produces a retryable 5xx.
func (h *CallbackHandlers) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "unreadable_body", Err: err})
		return
	}
	if len(payload) == 0 {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "empty_body", Err: errors.New("callback body is required")},
		)
		return
	}

	ack, err := h.Svc.Ingest(r.Context(), payload)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "ingest_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"routed":    ack.Routed,
		"duplicate": ack.Duplicate,
	})
}
