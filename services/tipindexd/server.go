package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	sdk "tipvault/sdk/tipvault"
)

// Server is the indexer's JSON query API. It serves from the local SQLite
// index and cross-checks one endpoint against the node for audits.
type Server struct {
	store   *SQLiteStore
	node    *sdk.Client
	metrics *indexMetrics
	logger  *slog.Logger
}

func NewServer(store *SQLiteStore, node *sdk.Client, metrics *indexMetrics, logger *slog.Logger) *Server {
	return &Server{store: store, node: node, metrics: metrics, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tips", s.handleTips)
		r.Get("/creators", s.handleCreators)
		r.Get("/creators/{address}/tips", s.handleCreatorTips)
		r.Get("/creators/{address}/badges", s.handleCreatorBadges)
		r.Get("/creators/{address}/audit", s.handleCreatorAudit)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	consumed, err := s.store.Cursor(r.Context(), cursorEvents)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"eventsConsumed": consumed,
	})
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	tips, err := s.store.ListTips(r.Context(), "", limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tips)
}

func (s *Server) handleCreators(w http.ResponseWriter, r *http.Request) {
	creators, err := s.store.ListCreators(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, creators)
}

func (s *Server) handleCreatorTips(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(chi.URLParam(r, "address"))
	limit := parseLimit(r.URL.Query().Get("limit"))
	tips, err := s.store.ListTips(r.Context(), address, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tips)
}

func (s *Server) handleCreatorBadges(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(chi.URLParam(r, "address"))
	badges, err := s.store.ListBadges(r.Context(), address)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, badges)
}

// handleCreatorAudit joins the local aggregate with the node's authoritative
// tip record so operators can spot indexing gaps.
func (s *Server) handleCreatorAudit(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(chi.URLParam(r, "address"))
	totals, err := s.store.Totals(r.Context(), address)
	if err != nil {
		if errors.Is(err, ErrNoSuchCreator) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	response := map[string]interface{}{"indexed": totals}
	if s.node != nil {
		nodeCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		record, err := s.node.GetTipRecord(nodeCtx, address)
		if err != nil {
			response["node"] = map[string]string{"error": err.Error()}
		} else {
			response["node"] = record
			response["consistent"] = record.TipCount == totals.TipCount && record.TipsReceived == totals.Gross
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseLimit(raw string) int {
	if strings.TrimSpace(raw) == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
