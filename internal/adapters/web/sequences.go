package web

import (
	"net/http"

	"procurement/internal/app"
)

// peekSequence handles GET /api/sequences/{type}.
func (h *Handler) peekSequence(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	next, err := h.svc.PeekSequence(r.Context(), docType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sequenceResponse{Type: docType, Next: next})
}

// allocateSequence handles POST /api/sequences/{type}/next. The returned
// number is consumed.
func (h *Handler) allocateSequence(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	n, err := h.svc.AllocateSequence(r.Context(), docType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sequenceResponse{Type: docType, Next: n})
}

// resetSequence handles POST /api/sequences/{type}/reset. The plaintext
// reset secret travels in X-Admin-Secret.
func (h *Handler) resetSequence(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	var body resetSequenceBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	err := h.svc.ResetSequence(r.Context(), app.ResetSequenceRequest{
		Type:        docType,
		StartNumber: body.StartNumber,
		AuthToken:   r.Header.Get("X-Admin-Secret"),
		Actor:       actor(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sequenceResponse{Type: docType, Next: body.StartNumber})
}
