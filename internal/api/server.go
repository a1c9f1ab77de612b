// Package api exposes the tour engine to the map UI over HTTP and websocket.
package api

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"flyover/pkg/version"
)

// Handlers are the route groups a server mounts. Nil groups are skipped,
// except Tour which is required.
type Handlers struct {
	Tour  *TourHandler
	Audio *AudioHandler
	Stats *StatsHandler
	Hub   *Hub
}

// NewServer creates and configures the HTTP server. static, when it names an
// existing directory, is served as the map UI. shutdown, when set, backs
// POST /api/shutdown. requests, when set, gets one line per request.
func NewServer(addr, static string, h Handlers, shutdown func(), requests *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
	})
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	mux.HandleFunc("GET /api/locations", h.Tour.HandleLocations)
	mux.HandleFunc("GET /api/tour", h.Tour.HandleStatus)
	mux.HandleFunc("POST /api/tour", h.Tour.HandleLoad)
	mux.HandleFunc("POST /api/tour/control", h.Tour.HandleControl)

	if h.Audio != nil {
		mux.HandleFunc("POST /api/audio/background", h.Audio.HandleBackground)
		mux.HandleFunc("POST /api/speak", h.Audio.HandleSpeak)
	}
	if h.Stats != nil {
		mux.HandleFunc("GET /api/stats", h.Stats.HandleStats)
	}
	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.ServeWS)
	}
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			_, _ = w.Write([]byte("Shutting down..."))
			// Let the response flush before the listener closes.
			time.AfterFunc(100*time.Millisecond, shutdown)
		})
	}

	if fi, err := os.Stat(static); err == nil && fi.IsDir() {
		mux.Handle("/", http.FileServer(&spaFileSystem{root: http.Dir(static)}))
	} else if static != "" {
		slog.Warn("API: map UI not found, serving API only", "path", static)
	}

	var handler http.Handler = mux
	if requests != nil {
		handler = logRequests(requests, mux)
	}

	// The websocket outlives any write timeout; it keeps its own deadlines.
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

func logRequests(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("Request Processed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// statusRecorder remembers the response status. It stays hijackable so the
// websocket upgrade keeps working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	s.status = http.StatusSwitchingProtocols
	return http.NewResponseController(s.ResponseWriter).Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
