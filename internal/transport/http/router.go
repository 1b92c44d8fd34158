package http

import (
	"log/slog"
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/realtime-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Handler        *Handler
	Auth           httpmw.Authenticator
	WS             http.HandlerFunc
	Logger         *slog.Logger
	AllowedOrigins []string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.RequestLogger(d.Logger))
	r.Use(middlewareChi.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS endpoint, токен в query или Authorization
	r.Get("/ws", d.WS)

	// Все /api маршруты требуют bearer токен
	r.Route("/api", func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(d.Auth))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Get("/users/online", d.Handler.ListOnline)
		pr.Get("/webrtc/ice-servers", d.Handler.ICEServers)
		pr.Post("/conversations/{id}/meetings", d.Handler.StartMeeting)

		pr.Route("/meetings/{id}", func(mr chi.Router) {
			mr.Post("/end", d.Handler.EndMeeting)
			mr.Get("/participants", d.Handler.GetParticipants)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
