package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"taskflow/internal/agenda"
	"taskflow/internal/config"
	"taskflow/internal/ics"
	appLog "taskflow/internal/log"
	"taskflow/internal/model"
	"taskflow/internal/store"
	"taskflow/internal/validate"
)

const maxBodyBytes = 1 << 20

// Server exposes the planner over a JSON HTTP API plus an iCalendar feed.
type Server struct {
	cfg         *config.Config
	svc         *agenda.Service
	mux         *http.ServeMux
	defaultView model.View
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc *agenda.Service) *Server {
	view, err := model.ParseView(cfg.DefaultView)
	if err != nil {
		view = model.ViewWeek
	}
	s := &Server{
		cfg:         cfg,
		svc:         svc,
		mux:         http.NewServeMux(),
		defaultView: view,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := logRequests(s.mux)
	if s.cfg.BasicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="taskflow", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, svc *agenda.Service) error {
	s := NewServer(cfg, svc)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleCompleteTask)

	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// viewParams reads ?view= and ?date=. The view defaults to the configured
// one and the date to today.
func (s *Server) viewParams(r *http.Request) (model.View, time.Time, error) {
	q := r.URL.Query()
	view, err := validate.ParseView(q.Get("view"), s.defaultView)
	if err != nil {
		return 0, time.Time{}, err
	}
	ref, err := validate.ParseDate(q.Get("date"), s.svc.Now(), s.svc.Location())
	if err != nil {
		return 0, time.Time{}, err
	}
	return view, ref, nil
}

type tasksResponse struct {
	Range model.CalendarRange `json:"range"`
	Tasks []model.Task        `json:"tasks"`
}

// handleListTasks returns the stored tasks that can produce occurrences in
// the requested view.
//
// GET /api/tasks?view=week&date=2024-03-14
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	view, ref, err := s.viewParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rng, tasks, err := s.svc.Tasks(r.Context(), view, ref)
	if err != nil {
		appLog.Error("list tasks failed", err, "view", view.String())
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasksResponse{Range: rng, Tasks: tasks})
}

// handleAgenda returns the expanded, day-bucketed view.
//
// GET /api/agenda?view=month&date=2024-02-10
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	view, ref, err := s.viewParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := s.svc.Agenda(r.Context(), view, ref)
	if err != nil {
		appLog.Error("agenda failed", err, "view", view.String())
		writeError(w, http.StatusInternalServerError, "failed to build agenda")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type taskResponse struct {
	Task model.Task `json:"task"`
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: t})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in validate.TaskInput
	if !decodeBody(w, r, &in) {
		return
	}
	t, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, taskResponse{Task: t})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var u validate.TaskUpdate
	if !decodeBody(w, r, &u) {
		return
	}
	t, err := s.svc.Update(r.Context(), id, u)
	if err != nil {
		s.writeServiceError(w, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: t})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := s.svc.Complete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: t})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, "delete task", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleCalendar serves every task as an iCalendar feed for subscription
// from calendar clients.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.All(r.Context())
	if err != nil {
		appLog.Error("calendar export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	var buf bytes.Buffer
	if err := ics.Encode(&buf, tasks, ics.EncodeOptions{Name: "taskflow", Stamp: s.svc.Now()}); err != nil {
		appLog.Error("calendar encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="taskflow.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is empty")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

type errorResponse struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

// writeServiceError maps service errors onto status codes: unknown ids are
// 404, rejected input 400, anything else 500.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	var verrs validate.Errors
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verrs.Error(), Fields: verrs})
	default:
		appLog.Error(op+" failed", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

// writeError writes a simple JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}
