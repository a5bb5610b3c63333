package web

import (
	"fmt"
	"net/http"
	"strconv"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// appendPrice handles POST /api/price-history.
func (h *Handler) appendPrice(w http.ResponseWriter, r *http.Request) {
	var body appendPriceBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	entry, err := h.svc.AppendPriceHistory(r.Context(), body.request(actor(r)))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}

// priceHistory handles GET /api/materials/{materialID}/price-history.
func (h *Handler) priceHistory(w http.ResponseWriter, r *http.Request) {
	materialID, ok := intParam(w, r, "materialID")
	if !ok {
		return
	}

	result, err := h.svc.GetPriceHistory(r.Context(), materialID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, priceHistoryResponse{
		MaterialID: result.MaterialID,
		Entries:    result.Entries,
		Superseded: result.Superseded,
	})
}

// exportPriceHistory handles GET /api/materials/{materialID}/price-history.xlsx.
func (h *Handler) exportPriceHistory(w http.ResponseWriter, r *http.Request) {
	materialID, ok := intParam(w, r, "materialID")
	if !ok {
		return
	}

	data, err := h.svc.ExportPriceHistory(r.Context(), materialID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="price-history-%d.xlsx"`, materialID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
