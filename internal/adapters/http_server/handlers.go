// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`

	Errors []domain.FieldProblem `json:"errors,omitempty"`
	// conflict only: the periods the fresh plan touches and its token
	Affected     []string `json:"affected,omitempty"`
	PreviewToken string   `json:"previewToken,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1/hotels/{hotelID}/rates", func(r chi.Router) {
		r.Get("/", h.listRates)
		r.Post("/", h.commitRate)
		r.Post("/preview", h.previewRate)
	})
	s.mux.Delete("/v1/rates/{id}", h.deleteRate)
}

func writeProblem(w http.ResponseWriter, p problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func badRequest(w http.ResponseWriter, title, detail string) {
	writeProblem(w, problem{Title: title, Status: http.StatusBadRequest, Detail: detail})
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeProblem(w, problem{Title: "Invalid rate period", Status: http.StatusUnprocessableEntity, Errors: ve.Problems})
	case errors.As(err, &ce):
		writeProblem(w, problem{
			Title:        "Conflict",
			Status:       http.StatusConflict,
			Detail:       "rate periods changed since preview; preview again and resubmit",
			Affected:     ce.Affected,
			PreviewToken: ce.Actual,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, problem{Title: "Not Found", Status: http.StatusNotFound, Detail: err.Error()})
	case errors.Is(err, domain.ErrStorage):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("storage unavailable")
		w.Header().Set("Retry-After", "1")
		writeProblem(w, problem{Title: "Service Unavailable", Status: http.StatusServiceUnavailable, Detail: "storage unavailable, nothing was written"})
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, problem{Title: "Internal Server Error", Status: http.StatusInternalServerError})
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handlers) listRates(w http.ResponseWriter, r *http.Request) {
	hotelID, ok := pathID(r, "hotelID")
	if !ok {
		badRequest(w, "Invalid ID", "hotelID must be a positive number")
		return
	}
	key, probs := groupFromQuery(hotelID, r.URL.Query())
	if len(probs) > 0 {
		writeError(w, r, &domain.ValidationError{Problems: probs})
		return
	}

	out, err := h.Q.ListPeriods(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag, body := calcETagAndBody(out)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listRates body")
	}
}

func (h *Handlers) previewRate(w http.ResponseWriter, r *http.Request) {
	c, _, ok := decodeCandidate(w, r)
	if !ok {
		return
	}
	res, err := h.Q.Preview(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) commitRate(w http.ResponseWriter, r *http.Request) {
	c, token, ok := decodeCandidate(w, r)
	if !ok {
		return
	}
	res, err := h.C.Commit(r.Context(), c, token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) deleteRate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		badRequest(w, "Invalid ID", "id must be a rate period id")
		return
	}
	if err := h.C.DeletePeriod(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeCandidate reads, validates and maps the request body. On failure the
// problem response is already written.
func decodeCandidate(w http.ResponseWriter, r *http.Request) (domain.Candidate, string, bool) {
	hotelID, ok := pathID(r, "hotelID")
	if !ok {
		badRequest(w, "Invalid ID", "hotelID must be a positive number")
		return domain.Candidate{}, "", false
	}

	var req periodRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "Malformed JSON", err.Error())
		return domain.Candidate{}, "", false
	}
	if probs := validateRequest(req); len(probs) > 0 {
		writeError(w, r, &domain.ValidationError{Problems: probs})
		return domain.Candidate{}, "", false
	}
	c, err := req.candidate(hotelID)
	if err != nil {
		writeError(w, r, err)
		return domain.Candidate{}, "", false
	}
	return c, req.PreviewToken, true
}
