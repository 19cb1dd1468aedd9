// Package api is the operator HTTP surface: health, journal and critique
// report reads, operator-approved parameter changes, and a WebSocket stream
// of emitted signals.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/critic"
	"trading-botcore/internal/journal"
	"trading-botcore/internal/model"
	"trading-botcore/internal/tuning"
)

// Deps are the components the API reads from and acts on.
type Deps struct {
	Journal *journal.Journal
	Reports *critic.ReportStore
	Applier *tuning.Applier
	Health  http.Handler // optional
	Stream  *Stream      // optional
}

// Server serves the API.
type Server struct {
	deps Deps
	srv  *http.Server
	log  *zap.Logger
}

// New creates a server listening on addr.
func New(addr string, deps Deps, log *zap.Logger) *Server {
	s := &Server{deps: deps, log: log}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("api server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("api server error", zap.Error(err))
		}
	}()
}

// Stop closes stream clients and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.deps.Stream != nil {
		s.deps.Stream.Close()
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/bots/{id}/journal", s.handleJournal)
	mux.HandleFunc("GET /api/v1/bots/{id}/reports", s.handleReports)
	mux.HandleFunc("GET /api/v1/bots/{id}/reports/{reportID}", s.handleReport)
	mux.HandleFunc("POST /api/v1/bots/{id}/reports/{reportID}/apply", s.handleApply)
	if s.deps.Stream != nil {
		mux.Handle("GET /api/v1/stream", s.deps.Stream)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		s.deps.Health.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleJournal lists entries oldest first. Query: type (trade, signal,
// event), limit (most recent n).
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var f journal.Filter
	switch t := model.EntryType(r.URL.Query().Get("type")); t {
	case "", model.EntryTrade, model.EntrySignal, model.EntryEvent:
		f.Type = t
	default:
		writeError(w, http.StatusBadRequest, "unknown entry type "+strconv.Quote(string(t)))
		return
	}

	entries, err := s.deps.Journal.GetByBotID(r.Context(), r.PathValue("id"), f)
	if err != nil {
		s.log.Error("journal query", zap.String("bot", r.PathValue("id")), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Reports.List(r.PathValue("id"), limit))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Reports.Get(r.PathValue("id"), r.PathValue("reportID"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type applyRequest struct {
	Passcode string `json:"passcode"`
	// Parameter selects one recommendation; empty applies every pending one.
	Parameter string `json:"parameter,omitempty"`
}

type applyResponse struct {
	Applied []critic.ParameterChange `json:"applied"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	botID, reportID := r.PathValue("id"), r.PathValue("reportID")

	var req applyRequest
	if err := sonic.ConfigDefault.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var params []botconfig.Param
	if req.Parameter != "" {
		p, err := botconfig.ParseParam(req.Parameter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params = append(params, p)
	} else {
		report, err := s.deps.Reports.Get(botID, reportID)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		for _, rec := range report.Recommendations {
			if !rec.Applied {
				params = append(params, rec.Parameter)
			}
		}
		if len(params) == 0 {
			writeError(w, http.StatusConflict, "report has no pending recommendations")
			return
		}
	}

	resp := applyResponse{Applied: []critic.ParameterChange{}}
	for _, p := range params {
		ch, err := s.deps.Applier.Apply(r.Context(), tuning.Request{
			BotID:    botID,
			ReportID: reportID,
			Param:    p,
			Passcode: req.Passcode,
		})
		if err != nil {
			s.log.Warn("apply rejected",
				zap.String("bot", botID),
				zap.String("report", reportID),
				zap.Stringer("param", p),
				zap.Error(err))
			if len(resp.Applied) > 0 {
				// earlier parameters are already live
				writeJSON(w, http.StatusMultiStatus, struct {
					applyResponse
					Error string `json:"error"`
				}{resp, err.Error()})
				return
			}
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp.Applied = append(resp.Applied, ch)
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tuning.ErrPasscode):
		return http.StatusUnauthorized
	case errors.Is(err, tuning.ErrUnknownBot), errors.Is(err, critic.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, tuning.ErrStale), errors.Is(err, tuning.ErrNotPending):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid limit %q", v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
