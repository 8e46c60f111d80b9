package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/homecheck/internal/domain"
	apimw "github.com/hamed0406/homecheck/internal/httpapi/middleware"
	"github.com/hamed0406/homecheck/internal/repo"
)

// Runner runs one round over targets. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	RunRound(ctx context.Context, targets []domain.Target) (domain.Snapshot, error)
}

type Server struct {
	Logger    *zap.Logger
	Targets   []domain.Target
	Runner    Runner
	Snapshots repo.SnapshotStore
}

func NewServer(l *zap.Logger, targets []domain.Target, runner Runner, snaps repo.SnapshotStore) *Server {
	return &Server{Logger: l, Targets: targets, Runner: runner, Snapshots: snaps}
}

// Router wires the API. Reads need any key, triggering a round needs an
// admin key; each group has its own per-IP rate limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(pubRPM, pubBurst))
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/snapshots/latest", s.handleLatest)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(admRPM, admBurst))
		r.Use(apimw.RequireAdmin(keys))
		r.Post("/api/rounds", s.handleRunRound)
	})

	return r
}

// roundView is the JSON shape of a snapshot.
type roundView struct {
	Timestamp time.Time                          `json:"timestamp"`
	Statuses  map[string]string                  `json:"statuses"`
	Outcomes  map[domain.TargetID]domain.Outcome `json:"outcomes"`
	Error     string                             `json:"error,omitempty"`
}

func viewOf(snap domain.Snapshot) roundView {
	return roundView{Timestamp: snap.Timestamp, Statuses: snap.Statuses(), Outcomes: snap.Outcomes}
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets := s.Targets
	if targets == nil {
		targets = []domain.Target{}
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.Snapshots == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rounds yet"})
		return
	}
	snap, err := s.Snapshots.LatestSnapshot(r.Context())
	if err != nil {
		s.Logger.Warn("latest_snapshot_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not read snapshot"})
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rounds yet"})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*snap))
}

// handleRunRound runs a round synchronously. When the audit trail could not
// be written the snapshot is still returned, with a 500 and the error text.
func (s *Server) handleRunRound(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no runner configured"})
		return
	}
	snap, err := s.Runner.RunRound(r.Context(), s.Targets)
	view := viewOf(snap)
	code := http.StatusOK
	if err != nil {
		s.Logger.Error("round_error", zap.Error(err))
		view.Error = err.Error()
		code = http.StatusInternalServerError
	}
	s.Logger.Info("round_requested",
		zap.Int("targets", len(snap.Outcomes)),
		zap.Any("statuses", view.Statuses),
	)
	writeJSON(w, code, view)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
