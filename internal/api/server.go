package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiworks/lexisurvey/internal/assessment"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Options configures a Server.
type Options struct {
	Logger *slog.Logger

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// CORSOrigins lists allowed origins. Empty disables CORS headers.
	CORSOrigins []string
}

// Server exposes an assessment.Service over HTTP.
type Server struct {
	svc      *assessment.Service
	logger   *slog.Logger
	validate *validator.Validate
	gatherer prometheus.Gatherer
	origins  []string
}

// New creates a Server.
func New(svc *assessment.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		svc:      svc,
		logger:   opts.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		gatherer: opts.Gatherer,
		origins:  opts.CORSOrigins,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)

	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"Content-Length"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.startSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.status)
			r.Post("/answers", s.submitAnswer)
			r.Get("/results", s.results)
		})
	})
	return r
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := s.decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.StartSession(r.Context(), req.RankHint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, StartResponse{
		SessionID: res.SessionID,
		Total:     res.Total,
		Question:  questionView(res.Question),
	})
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.SubmitAnswer(r.Context(), req.toSubmit(chi.URLParam(r, "sessionID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse(res))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse(st))
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Results(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// decode reads a JSON body into v and validates it. An empty body is
// accepted when allowEmpty is set.
func (s *Server) decode(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return fmt.Errorf("%w: %v", errInvalidRequest, err)
		}
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"event", "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
