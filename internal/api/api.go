// Package api serves the persisted event set, run history and metrics over
// HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/events"
	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/monitoring"
	"github.com/sells-group/bulletin-cli/internal/store"
)

// Options configures the router. Store and Collector may be nil, in which
// case the run and status endpoints answer 503.
type Options struct {
	Store          store.Store
	Collector      *monitoring.Collector
	LookbackHours  int
	EventsPath     string
	Location       *time.Location
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Now            func() time.Time
}

type server struct {
	store      store.Store
	collector  *monitoring.Collector
	lookback   int
	eventsPath string
	loc        *time.Location
	now        func() time.Time
}

// NewRouter builds the HTTP handler for serve mode.
func NewRouter(opts Options) http.Handler {
	s := &server{
		store:      opts.Store,
		collector:  opts.Collector,
		lookback:   opts.LookbackHours,
		eventsPath: opts.EventsPath,
		loc:        opts.Location,
		now:        opts.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.lookback <= 0 {
		s.lookback = 24
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/events", s.listEvents)
	r.Get("/events.ics", s.calendar)
	r.Get("/runs", s.listRuns)
	r.Get("/runs/{id}", s.getRun)
	r.Get("/status", s.status)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// filteredEvents loads the event set and applies the family and from query
// parameters, sorted by date and time.
func (s *server) filteredEvents(r *http.Request) ([]model.EventRecord, error) {
	records, err := events.Load(s.eventsPath)
	if err != nil {
		return nil, err
	}
	if family := r.URL.Query().Get("family"); family != "" {
		records = events.FilterByFamily(records, family)
	}
	if from := r.URL.Query().Get("from"); from != "" {
		kept := records[:0:0]
		for _, e := range records {
			if e.Date >= from {
				kept = append(kept, e)
			}
		}
		records = kept
	}
	model.SortEvents(records)
	return records, nil
}

func (s *server) listEvents(w http.ResponseWriter, r *http.Request) {
	records, err := s.filteredEvents(r)
	if err != nil {
		zap.L().Error("api: load events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) calendar(w http.ResponseWriter, r *http.Request) {
	records, err := s.filteredEvents(r)
	if err != nil {
		zap.L().Error("api: load events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := events.WriteICS(w, records, s.loc, s.now()); err != nil {
		zap.L().Error("api: write calendar", zap.Error(err))
	}
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{
		Mode:   model.RunMode(q.Get("mode")),
		Status: model.RunStatus(q.Get("status")),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// status reports run health over the lookback window, overridable with
// ?hours=.
func (s *server) status(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	hours := s.lookback
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := intParam(v)
		if err != nil || n == 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}

	snap, err := s.collector.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("api: collect status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect status")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
