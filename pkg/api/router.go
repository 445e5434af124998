package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jphacks/os-2412/pkg/api/handler"
	"github.com/jphacks/os-2412/pkg/logger"
)

type Config struct {
	AllowedOrigins   []string
	UploadsDir       string
	UploadsURLPrefix string
	MaxUploadBytes   int64
	SessionTTL       time.Duration
}

func NewRouter(cfg Config, journey handler.JourneyService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	h := handler.NewJourney(journey, cfg.MaxUploadBytes)
	r.Route("/api", func(r chi.Router) {
		r.Use(handler.Sessions(cfg.SessionTTL))

		r.Post("/analyze", h.Analyze)
		r.Get("/album", h.Album)
		r.Get("/album/{id}", h.Record)
		r.Get("/chat", h.Active)
		r.Post("/chat/message", h.Message)
		r.Post("/chat/voice", h.Voice)
		r.Post("/chat/{id}", h.Open)
	})

	prefix := strings.TrimSuffix(cfg.UploadsURLPrefix, "/")
	r.Handle(prefix+"/*", http.StripPrefix(prefix, noListing(http.FileServer(http.Dir(cfg.UploadsDir)))))

	return r
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger tags the context with chi's request id and logs each request
// once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		slog.InfoContext(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
