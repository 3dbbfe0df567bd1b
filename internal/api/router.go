// Package api wires the chi router: the websocket endpoint, the
// read-only JSON API, Prometheus metrics and the static web client.
package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/coderoom/internal/api/middleware"
	"github.com/eldtechnologies/coderoom/internal/handlers"
	"github.com/eldtechnologies/coderoom/internal/ws"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(h *handlers.Handler, wsServer *ws.Server, corsOrigin string, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware first, to capture all requests.
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus scrape endpoint.
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	// The real-time transport.
	r.Handle("/ws", wsServer)

	// Read-only JSON API.
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/config", h.ClientConfig)
		r.Get("/teacher/rooms", h.TeacherRooms)
		r.Get("/teacher/room/{roomID}", h.TeacherRoomDetail)
	})

	// Static web client.
	r.Get("/", serveIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir()))))

	return r
}

// staticDir returns the path to static files directory.
func staticDir() string {
	// Production container layout first.
	if _, err := os.Stat("/app/web/static"); err == nil {
		return "/app/web/static"
	}
	return "web/static"
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, staticDir()+"/index.html")
}
