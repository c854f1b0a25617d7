package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filingline/chat-relay/internal/api"
	"github.com/filingline/chat-relay/internal/config"
	"github.com/filingline/chat-relay/internal/database"
	"github.com/filingline/chat-relay/internal/mail"
	"github.com/filingline/chat-relay/internal/server"
	"github.com/filingline/chat-relay/internal/stats"
)

func main() {
	logger := log.New(os.Stderr, "[chat-relay] ", log.LstdFlags)

	cfg, err := config.Load(context.Background())
	if err != nil {
		logger.Fatal("config: ", err)
	}

	dbConn, err := database.NewPgRelayRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close: ", err)
		}
	}()

	if cfg.RunMigrations {
		if err := dbConn.Migrate(); err != nil {
			logger.Fatal("migrate: ", err)
		}
	}

	feed, err := database.NewPgChangeFeed(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("change feed: ", err)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			logger.Println("change feed close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	mailer := mail.NewSMTPMailer(cfg.SMTP, logger)

	relayServer, err := server.NewRelayServer(logger, dbConn, statsUpdater, mailer, feed)
	if err != nil {
		logger.Fatal("new relay server: ", err)
	}

	srv := api.NewRelayApp(mux, logger, relayServer, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go relayServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down relay...")
	if err := relayServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("relay shutdown:", err)
	}

	logger.Println("shutdown complete")
}
