package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/locbridge/internal/resilient"
	"go.uber.org/zap"
)

// HealthReport is the JSON body of /healthz.
type HealthReport struct {
	Status string                `json:"status"`
	Error  string                `json:"error,omitempty"`
	Pose   PoseStatus            `json:"pose"`
	Links  []resilient.LinkState `json:"links"`
	Redis  string                `json:"redis,omitempty"`
}

// PoseStatus describes the latest pose seen on the stream.
type PoseStatus struct {
	Received  bool    `json:"received"`
	Localized bool    `json:"localized"`
	State     int32   `json:"state"`
	AgeMs     int64   `json:"age_ms,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Yaw       float64 `json:"yaw"`
}

// Reporter produces a health report.
type Reporter interface {
	Report(ctx context.Context) HealthReport
}

// HealthServer serves /healthz.
// Returns 200 when the report status is healthy, 503 otherwise.
type HealthServer struct {
	server   *http.Server
	reporter Reporter
	log      *zap.SugaredLogger
}

// NewHealthServer creates a health server listening on all interfaces at port.
func NewHealthServer(reporter Reporter, port int, log *zap.SugaredLogger) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		reporter: reporter,
		log:      log,
	}
	mux.HandleFunc("/healthz", hs.handleHealthz)
	return hs
}

// Start binds the port and serves in a background goroutine.
// Returns an error if the port cannot be bound.
func (hs *HealthServer) Start() error {
	ln, err := net.Listen("tcp", hs.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	go func() {
		hs.log.Debugw("Health server starting", "addr", ln.Addr().String())
		if err := hs.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			hs.log.Errorw("Health server error", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

func (hs *HealthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	report := hs.reporter.Report(ctx)
	statusCode := http.StatusOK
	if report.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		hs.log.Errorw("Failed to encode health response", "err", err)
	}
}
