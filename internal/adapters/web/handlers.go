package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"procurement/internal/app"
	"procurement/internal/core"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(maxBodyBytes))

		r.Route("/api/sequences/{type}", func(r chi.Router) {
			r.Get("/", h.peekSequence)
			r.Post("/next", h.allocateSequence)
			r.Post("/reset", h.resetSequence)
		})

		r.Route("/api/documents/{type}", func(r chi.Router) {
			r.Get("/", h.listDocuments)
			r.Post("/", h.createDocument)
			r.Post("/draft", h.draftDocument)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getDocument)
				r.Put("/", h.updateDocument)
				r.Delete("/", h.deleteDocument)
				r.Post("/transition", h.transitionDocument)
				r.Post("/archive", h.archiveDocument)
				r.Post("/unarchive", h.unarchiveDocument)
			})
		})

		r.Post("/api/price-history", h.appendPrice)
		r.Get("/api/materials/{materialID}/price-history", h.priceHistory)
		r.Get("/api/materials/{materialID}/price-history.xlsx", h.exportPriceHistory)
	})

	h.router = r
	return r
}

// health reports liveness. It does not touch storage.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// documentType extracts and parses the {type} URL parameter.
func documentType(w http.ResponseWriter, r *http.Request) (core.DocumentType, bool) {
	t, err := core.ParseDocumentType(chi.URLParam(r, "type"))
	if err != nil {
		writeServiceError(w, r, err)
		return "", false
	}
	return t, true
}

// intParam extracts a positive integer URL parameter.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// actor returns the authenticated caller. RequireAuth guarantees presence.
func actor(r *http.Request) core.Actor {
	a, _ := actorFromContext(r.Context())
	return a
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeAndValidate decodes v and runs its validate tags. Tag failures are
// reported like core validation errors.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeServiceError(w, r, &core.ValidationError{Fields: validationFields(err)})
		return false
	}
	return true
}
