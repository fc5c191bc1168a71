package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/obfuscator/internal/service"
)

const (
	headerFormat     = "X-Obfuscator-Format"
	headerRows       = "X-Obfuscator-Rows"
	headerJobID      = "X-Obfuscator-Job-Id"
	headerMasked     = "X-Obfuscator-Masked"
	headerInputHash  = "X-Obfuscator-Input-Hash"
	headerOutputHash = "X-Obfuscator-Output-Hash"
)

// handleObfuscate runs one job and streams the masked object back.
func (s *Server) handleObfuscate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize)

	var req service.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = fmt.Errorf("%w: body exceeds %d bytes", service.ErrInvalidRequest, tooBig.Limit)
		} else if !errors.Is(err, service.ErrInvalidRequest) {
			err = fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
		}
		respondError(w, r, err)
		return
	}

	resp, err := s.service.Obfuscate(withClient(r.Context(), r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", resp.Format.ContentType())
	h.Set(headerFormat, string(resp.Format))
	h.Set(headerRows, strconv.Itoa(resp.Rows))
	h.Set(headerJobID, resp.JobID)
	h.Set(headerMasked, strings.Join(resp.Masked, ","))
	h.Set(headerInputHash, resp.InputHash)
	h.Set(headerOutputHash, resp.OutputHash)
	if resp.Destination != "" {
		h.Set("Content-Location", resp.Destination)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Payload)
}

// handleStatus reports job slot usage and job counts.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Status())
}

// handleAudit lists recent audit events when the auditor can query them.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.service.Auditor().(service.Lister)
	if !ok {
		writeJSON(w, r, http.StatusNotImplemented, ErrorResponse{
			Error:   "Audit history is not available",
			Message: "Audit history is not available",
			Action:  "Configure DATABASE_URL to store audit events",
			Code:    "SVC005",
		})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, r, fmt.Errorf("%w: limit must be 1-1000", service.ErrInvalidRequest))
			return
		}
		limit = n
	}

	events, err := lister.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
