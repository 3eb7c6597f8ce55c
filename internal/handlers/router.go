package handlers

import (
	"net/http"
	"time"

	"ledgerbank/internal/auth"
	"ledgerbank/internal/config"
	"ledgerbank/internal/middleware"
	"ledgerbank/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	cfg       config.Config
	service   AccountService
	ws        *websocket.Server
	logger    logrus.FieldLogger
	signToken func(secret, userID, role string, ttl time.Duration) (string, error)
}

func New(cfg config.Config, service AccountService, ws *websocket.Server, logger logrus.FieldLogger) *Handler {
	return &Handler{
		cfg:       cfg,
		service:   service,
		ws:        ws,
		logger:    logger,
		signToken: auth.GenerateToken,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: h.cfg.AllowedOrigins != "*",
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	// long-lived, so it stays outside the request timeout
	router.Get("/ws/balances", h.WSBalances)

	router.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(h.cfg.RequestTimeout))

		r.Post("/auth/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/auth/me", h.Me)

		r.Route("/accounts", func(r chi.Router) {
			r.Use(middleware.Auth(h.cfg.JWTSecret))
			r.With(middleware.RequireAdmin).Get("/", h.ListAccounts)
			r.With(middleware.RequireAdmin).Post("/", h.CreateAccount)
			r.Route("/{id}", func(r chi.Router) {
				r.With(middleware.RequireSelfOrAdmin("id")).Get("/", h.GetAccount)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Put("/", h.ReplaceAccount)
					r.Patch("/", h.EditProfile)
					r.Delete("/", h.DeleteAccount)
					r.Post("/movements", h.RecordMovement)
					r.Post("/credits", h.AssignCredit)
					r.Post("/loans", h.AssignLoan)
				})
			})
		})
	})
	return router
}
