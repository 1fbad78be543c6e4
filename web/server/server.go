package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/df07/go-view-analysis/pkg/core"
	"github.com/df07/go-view-analysis/pkg/geometry"
	"github.com/df07/go-view-analysis/pkg/obstacle"
	"github.com/df07/go-view-analysis/pkg/viewanalysis"
)

const maxBodyBytes = 32 << 20

// Server handles web requests for view analysis
type Server struct {
	port    int
	workers int
	logger  *slog.Logger
	router  *mux.Router
}

// NewServer creates a new web server. workers bounds the goroutines used per
// request (one per CPU when <= 0); a nil logger uses slog.Default().
func NewServer(port, workers int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{port: port, workers: workers, logger: logger, router: mux.NewRouter()}

	s.router.Use(s.requestMiddleware)
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/raybunch", s.handleRayBunch).Methods(http.MethodPost)
	api.HandleFunc("/clearance", s.handleClearance).Methods(http.MethodPost)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// ObstacleInput describes the obstacle surface of a request: an explicit
// triangle mesh, or massing primitives when no vertices are given
type ObstacleInput struct {
	Vertices []core.Vec3     `json:"vertices"`
	Faces    []int           `json:"faces"` // 3 indices per triangle
	Scene    *obstacle.Scene `json:"scene,omitempty"`
}

// RayBunchRequest asks for view directions around one or more normals
type RayBunchRequest struct {
	Normals       []core.Vec3 `json:"normals"`
	AngleStep     float64     `json:"angleStep"`
	RingCount     int         `json:"ringCount"`
	DivisionCount int         `json:"divisionCount"`
}

// RayBunchResponse holds one bunch per requested normal
type RayBunchResponse struct {
	Bunches []viewanalysis.RayBunch `json:"bunches"`
}

// ClearanceRequest asks for clear distances from one point
type ClearanceRequest struct {
	Point       core.Vec3     `json:"point"`
	Directions  []core.Vec3   `json:"directions"`
	MaxDistance float64       `json:"maxDistance"`
	Obstacle    ObstacleInput `json:"obstacle"`
}

// ClearanceResponse holds one distance per requested direction
type ClearanceResponse struct {
	Distances []float64 `json:"distances"`
}

// AnalyzeRequest runs a batch view analysis
type AnalyzeRequest struct {
	Samples     []viewanalysis.Sample    `json:"samples"`
	Bunch       viewanalysis.BunchParams `json:"bunch"`
	MaxDistance float64                  `json:"maxDistance"`
	Obstacle    ObstacleInput            `json:"obstacle"`
}

// AnalyzeResponse holds one result per sample
type AnalyzeResponse struct {
	Results []viewanalysis.SampleResult `json:"results"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

type requestIDKey struct{}

// requestMiddleware tags each request with an id and logs its outcome
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startTime := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(startTime))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRayBunch(w http.ResponseWriter, r *http.Request) {
	var req RayBunchRequest
	if !s.decode(w, r, &req) {
		return
	}

	bunches, err := viewanalysis.GenerateRayBunch(req.Normals, req.AngleStep, req.RingCount, req.DivisionCount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RayBunchResponse{Bunches: bunches})
}

func (s *Server) handleClearance(w http.ResponseWriter, r *http.Request) {
	var req ClearanceRequest
	if !s.decode(w, r, &req) {
		return
	}

	mesh, err := s.buildObstacle(req.Obstacle)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	distances, err := viewanalysis.ComputeClearDistancesParallel(r.Context(), req.Point, req.Directions, mesh, req.MaxDistance, s.workers)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ClearanceResponse{Distances: distances})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !s.decode(w, r, &req) {
		return
	}

	analyzer, err := viewanalysis.NewAnalyzer(viewanalysis.AnalyzerConfig{
		Bunch:       req.Bunch,
		MaxDistance: req.MaxDistance,
		Workers:     s.workers,
	}, s.logger.With("request", requestID(r)))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	mesh, err := s.buildObstacle(req.Obstacle)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := analyzer.Analyze(r.Context(), req.Samples, mesh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, AnalyzeResponse{Results: results})
}

// buildObstacle turns request geometry into a usable mesh. Every failure is
// a caller error.
func (s *Server) buildObstacle(in ObstacleInput) (*geometry.TriangleMesh, error) {
	var mesh *geometry.TriangleMesh
	var err error

	switch {
	case len(in.Vertices) > 0:
		mesh, err = geometry.NewTriangleMesh(in.Vertices, in.Faces, nil)
	case in.Scene != nil && !in.Scene.IsEmpty():
		mesh, err = obstacle.Build(*in.Scene, s.logger)
	default:
		return nil, fmt.Errorf("%w: obstacle needs vertices and faces or a scene", viewanalysis.ErrInvalidArgument)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", viewanalysis.ErrInvalidArgument, err)
	}
	return mesh, nil
}

// decode reads a JSON body, answering 400 itself on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     fmt.Sprintf("invalid request body: %v", err),
			RequestID: requestID(r),
		})
		return false
	}
	return true
}

// writeError maps input errors to 400 and everything else to 500
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, viewanalysis.ErrInvalidArgument) || errors.Is(err, viewanalysis.ErrDegenerateInput) {
		status = http.StatusBadRequest
	} else {
		s.logger.Error("request failed", "id", requestID(r), "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: requestID(r)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}
