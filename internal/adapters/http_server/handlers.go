// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"

	"venue_finder/internal/app"
	"venue_finder/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	V *app.VenueService
	F *app.FavoriteService

	// WritesPerMinute caps mutating requests per client IP; 0 means 60.
	WritesPerMinute int
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	writes := h.WritesPerMinute
	if writes <= 0 {
		writes = 60
	}

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/venues", h.listVenues)
		r.Get("/venue/{slug}", h.getVenue)
		r.Get("/venues/{id}/edit", h.editVenue)

		r.Group(func(wr chi.Router) {
			wr.Use(httprate.LimitByIP(writes, time.Minute))
			wr.Post("/venues", h.createVenue)
			wr.Put("/venues/{id}", h.updateVenue)
			wr.Post("/venues/{id}/favorite", h.toggleFavorite)
		})

		r.Get("/tags", h.listTags)
		r.Get("/tags/{tag}", h.listTags)
		r.Get("/search", h.search)
		r.Get("/near", h.near)
		r.Get("/top", h.topRated)
		r.Get("/favorites", h.favorites)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps a service error onto its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Invalid input", Status: http.StatusBadRequest,
			Detail: ve.Error(), Fields: ve.Fields})
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrTimeout):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "the operation took too long")
	default:
		log.Error().Err(err).Msg("unhandled service error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers GETs with a weak ETag and honours If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeBody(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := ActorFrom(r.Context())
	if id == "" {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", UserHeader+" header is required")
		return "", false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (domain.VenueInput, bool) {
	var in domain.VenueInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return in, false
	}
	return in, true
}

func parseFloat(w http.ResponseWriter, r *http.Request, name string) (float64, bool) {
	f, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		writeProblemBody(w, problem{Type: "about:blank", Title: "Invalid input", Status: http.StatusBadRequest,
			Detail: name + " must be a number", Fields: map[string]string{name: "number"}})
		return 0, false
	}
	return f, true
}

// ---- venues ----

func (h *Handlers) listVenues(w http.ResponseWriter, r *http.Request) {
	page := 1
	if ps := r.URL.Query().Get("page"); ps != "" {
		p, err := strconv.Atoi(ps)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid page", "page must be an integer")
			return
		}
		page = p
	}
	out, err := h.Q.ListVenues(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	if out.Redirected() {
		http.Redirect(w, r, "/v1/venues?page="+strconv.Itoa(out.RedirectTo), http.StatusTemporaryRedirect)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) getVenue(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) createVenue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	v, err := h.V.Create(r.Context(), actor, in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/venue/"+v.Slug)
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handlers) editVenue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	v, err := h.V.GetForEdit(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handlers) updateVenue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	v, err := h.V.Update(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ---- aggregations ----

func (h *Handlers) listTags(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.VenuesByTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) near(w http.ResponseWriter, r *http.Request) {
	lng, ok := parseFloat(w, r, "lng")
	if !ok {
		return
	}
	lat, ok := parseFloat(w, r, "lat")
	if !ok {
		return
	}
	out, err := h.Q.Near(r.Context(), lng, lat)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) topRated(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.TopRated(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

// ---- favorites ----

func (h *Handlers) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	out, err := h.F.Toggle(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) favorites(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	out, err := h.F.Favorites(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
