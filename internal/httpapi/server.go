package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/healthgate/internal/domain"
	apimw "github.com/hamed0406/healthgate/internal/httpapi/middleware"
	"github.com/hamed0406/healthgate/internal/registry"
	"github.com/hamed0406/healthgate/internal/report"
	"github.com/hamed0406/healthgate/internal/repo"
)

// Trigger runs a check cycle on demand. *scheduler.Runner satisfies it.
type Trigger interface {
	RunOnce(ctx context.Context) (domain.Report, error)
}

type Server struct {
	Logger       *zap.Logger
	Registry     registry.Registry
	Reports      repo.ReportStore
	Trigger      Trigger
	HistoryLimit int
}

func NewServer(l *zap.Logger, reg registry.Registry, reports repo.ReportStore, trig Trigger, historyLimit int) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &Server{Logger: l, Registry: reg, Reports: reports, Trigger: trig, HistoryLimit: historyLimit}
}

// Router wires the API. Public routes accept any configured key and share
// the public rate limit; POST /api/runs needs an admin key and has its own.
// An empty allowedOrigins list allows every origin.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.RequestLog(s.Logger))
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

	r.Route("/api", func(api chi.Router) {
		api.Group(func(pub chi.Router) {
			pub.Use(apimw.RateLimit(pubRPM, pubBurst))
			pub.Use(apimw.RequireAny(keys))
			pub.Get("/targets", s.handleTargets)
			pub.Get("/reports/latest", s.handleLatest)
			pub.Get("/reports", s.handleList)
			pub.Get("/gate", s.handleGate)
		})
		api.Group(func(adm chi.Router) {
			adm.Use(apimw.RateLimit(admRPM, admBurst))
			adm.Use(apimw.RequireAdmin(keys))
			adm.Post("/runs", s.handleRun)
		})
	})

	return r
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.All())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Reports.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("latest_report_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load report")
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, "no report yet")
		return
	}
	writeJSON(w, http.StatusOK, report.NewDocument(*rep))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	limit = min(limit, s.HistoryLimit)

	reps, err := s.Reports.List(r.Context(), limit)
	if err != nil {
		s.Logger.Warn("list_reports_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list reports")
		return
	}
	docs := make([]report.Document, 0, len(reps))
	for _, rep := range reps {
		docs = append(docs, report.NewDocument(rep))
	}
	writeJSON(w, http.StatusOK, docs)
}

type gateResponse struct {
	Pass           bool          `json:"pass"`
	Overall        domain.Status `json:"overall,omitempty"`
	ExitCode       int           `json:"exit_code"`
	RunID          string        `json:"run_id,omitempty"`
	Counts         domain.Counts `json:"counts"`
	CriticalErrors []string      `json:"critical_errors,omitempty"`
}

// handleGate mirrors the CLI exit code: 200 when the latest run had no
// errors, 503 otherwise or when nothing has run yet.
func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Reports.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("gate_report_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load report")
		return
	}
	if rep == nil {
		writeJSON(w, http.StatusServiceUnavailable, gateResponse{Pass: false, ExitCode: 1})
		return
	}
	resp := gateResponse{
		Pass:           rep.ExitCode() == 0,
		Overall:        rep.Overall(),
		ExitCode:       rep.ExitCode(),
		RunID:          rep.RunID,
		Counts:         rep.Counts,
		CriticalErrors: rep.CriticalErrors(),
	}
	code := http.StatusOK
	if !resp.Pass {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Trigger.RunOnce(r.Context())
	if err != nil {
		// the run itself completed; only storing it failed
		s.Logger.Warn("manual_run_store_error", zap.String("run_id", rep.RunID), zap.Error(err))
	}
	s.Logger.Info("manual_run",
		zap.String("run_id", rep.RunID),
		zap.String("overall", string(rep.Overall())),
	)
	writeJSON(w, http.StatusOK, report.NewDocument(rep))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
