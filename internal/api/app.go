package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/filingline/chat-relay/internal/config"
	"github.com/filingline/chat-relay/internal/database"
	"github.com/filingline/chat-relay/internal/server"
	"github.com/gorilla/handlers"
)

type RelayApp struct {
	log            *log.Logger
	db             database.RelayRepository
	mux            *http.Server
	relay          *server.RelayServer
	signingKey     []byte
	allowedOrigins []string
}

func NewRelayApp(mux *http.ServeMux, logger *log.Logger, relay *server.RelayServer, db database.RelayRepository, cfg *config.Config) *RelayApp {
	s := &RelayApp{
		log:            logger,
		db:             db,
		relay:          relay,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/orders/{order_id}/messages", s.authMiddleware(s.getOrderMessages))
	mux.HandleFunc("POST /api/orders/{order_id}/messages", s.authMiddleware(s.createOrderMessage))
	mux.HandleFunc("POST /api/orders/{order_id}/read", s.authMiddleware(s.markRead))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))
	mux.HandleFunc("GET /health", s.health)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *RelayApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *RelayApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
