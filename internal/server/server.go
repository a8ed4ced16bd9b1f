// Package server exposes the filtered reader, the option catalog, the
// insight reductions and the prediction service as a JSON HTTP API.
//
// Routes:
//
//	GET  /healthz       → liveness
//	GET  /api/options   → filter choices
//	GET  /api/records   → NDJSON rows for year/state/category
//	GET  /api/insights  → KPIs and breakdowns
//	POST /api/predict   → dissatisfaction risk for one complaint
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"ouvidoria/internal/catalog"
	"ouvidoria/internal/insights"
	"ouvidoria/internal/predict"
	"ouvidoria/internal/query"
	"ouvidoria/internal/schema"
)

// Config controls request limits.
type Config struct {
	Addr    string
	MaxRows int
}

// Reader is the read side the handlers need; *query.Reader satisfies it.
type Reader interface {
	Read(ctx context.Context, c query.Criteria, columns []string) *query.Table
}

// Server routes requests to the read-only collaborators it was built with.
type Server struct {
	cfg     Config
	router  *mux.Router
	reader  Reader
	options *catalog.Options
	predict *predict.Service
}

// New wires the routes. opts must not be nil; use catalog.Fallback when the
// artifact is unavailable.
func New(cfg Config, reader Reader, opts *catalog.Options, svc *predict.Service) *Server {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	s := &Server{
		cfg:     cfg,
		router:  mux.NewRouter(),
		reader:  reader,
		options: opts,
		predict: svc,
	}
	s.routes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer builds the listening server for cfg.Addr.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) routes() {
	s.router.Use(logRequests)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/options", s.handleOptions).Methods(http.MethodGet)
	s.router.HandleFunc("/api/records", s.handleRecords).Methods(http.MethodGet)
	s.router.HandleFunc("/api/insights", s.handleInsights).Methods(http.MethodGet)
	s.router.HandleFunc("/api/predict", s.handlePredict).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "fallback_options": s.options.Fallback})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	y, st := s.options.DefaultSelection()
	writeJSON(w, http.StatusOK, struct {
		*catalog.Options
		DefaultYear  int    `json:"default_year"`
		DefaultState string `json:"default_state"`
	}{s.options, y, st})
}

// handleRecords streams the selected rows as NDJSON. An empty selection is an
// empty 200 body, not an error.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r.URL.Query(), s.cfg.MaxRows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cols := r.URL.Query()["column"]
	if len(cols) == 0 {
		cols = schema.Names()
	}
	tbl := s.reader.Read(r.Context(), c, cols)
	defer tbl.Release()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := tbl.WriteNDJSON(w); err != nil {
		log.Printf("http: records: %v", err)
	}
}

// handleInsights computes the KPI block for the full criteria and the
// breakdowns ignoring the category, as two concurrent reads.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r.URL.Query(), 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.Limit = 0

	var sum insights.Summary
	var kpi insights.KPI
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		tbl := s.reader.Read(ctx, c, insights.Columns)
		defer tbl.Release()
		kpi = insights.KPIs(tbl)
		return nil
	})
	g.Go(func() error {
		all := c
		all.Category = ""
		tbl := s.reader.Read(ctx, all, insights.Columns)
		defer tbl.Release()
		sum = insights.Breakdowns(tbl)
		return nil
	})
	_ = g.Wait()
	sum.KPI = kpi
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var in map[string]string
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&in); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	res := s.predict.Predict(r.Context(), in)
	status := http.StatusOK
	switch res.Status {
	case predict.StatusInvalid:
		status = http.StatusUnprocessableEntity
	case predict.StatusError:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Printf("http: method=%s path=%s status=%d elapsed=%s",
			r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Microsecond))
	})
}
