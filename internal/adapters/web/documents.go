package web

import (
	"net/http"

	"procurement/internal/core"
)

// listDocuments handles GET /api/documents/{type}?status=active|history|<STATUS>.
func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ListDocuments(r.Context(), docType, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := documentListResponse{Type: result.Type, Documents: make([]documentResponse, 0, len(result.Documents))}
	for i := range result.Documents {
		resp.Documents = append(resp.Documents, newDocumentResponse(&result.Documents[i], 0))
	}
	writeJSON(w, resp)
}

// createDocument handles POST /api/documents/{type}.
func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	var body createDocumentBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.svc.CreateDocument(r.Context(), body.request(docType, actor(r)))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, newDocumentResponse(result.Document, result.PricesRecorded))
}

// getDocument handles GET /api/documents/{type}/{id}.
func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.svc.GetDocument(r.Context(), docType, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, newDocumentResponse(result.Document, 0))
}

// updateDocument handles PUT /api/documents/{type}/{id}.
func (h *Handler) updateDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body updateDocumentBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.svc.UpdateDocument(r.Context(), body.request(docType, id, actor(r)))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, newDocumentResponse(result.Document, result.PricesRecorded))
}

// deleteDocument handles DELETE /api/documents/{type}/{id}.
func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), docType, id, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transitionDocument handles POST /api/documents/{type}/{id}/transition.
func (h *Handler) transitionDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body transitionBody
	if !decodeAndValidate(w, r, &body) {
		return
	}
	target, err := core.ParseDocumentStatus(body.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.svc.TransitionStatus(r.Context(), docType, id, target, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, newDocumentResponse(result.Document, 0))
}

// archiveDocument handles POST /api/documents/{type}/{id}/archive.
func (h *Handler) archiveDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.svc.ArchiveDocument(r.Context(), docType, id, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, newDocumentResponse(result.Document, 0))
}

// unarchiveDocument handles POST /api/documents/{type}/{id}/unarchive.
func (h *Handler) unarchiveDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.svc.UnarchiveDocument(r.Context(), docType, id, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, newDocumentResponse(result.Document, 0))
}

// draftDocument handles POST /api/documents/{type}/draft. Nothing is saved.
func (h *Handler) draftDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := documentType(w, r)
	if !ok {
		return
	}
	var body draftBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.svc.DraftDocumentFromText(r.Context(), docType, body.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Draft)
}
