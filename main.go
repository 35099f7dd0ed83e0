package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/tallyhq/tally/api"
	"github.com/tallyhq/tally/auditlog"
	"github.com/tallyhq/tally/config"
	"github.com/tallyhq/tally/group"
	"github.com/tallyhq/tally/grouplock"
	"github.com/tallyhq/tally/ledger"
	"github.com/tallyhq/tally/middleware"
	"github.com/tallyhq/tally/session"
	"github.com/tallyhq/tally/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		printErrorAndExit("loading configuration", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		printErrorAndExit("database connection", err)
	}
	err = db.Ping()
	if err != nil {
		printErrorAndExit("pinging database", err)
	}

	audit := auditlog.NewSqlLogger(db)
	worker := auditlog.NewWorker(audit, cfg.Server.AuditBufferSize)
	worker.Start()
	defer worker.Shutdown()

	userRepo := user.NewRepository(db)
	sessionRepo := session.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	groupRepo := group.NewRepository(db, ledgerRepo)

	locks := grouplock.NewRegistry(cfg.Server.LockTimeout)
	ledgerSvc := ledger.NewService(ledgerRepo, groupRepo, locks)

	server := api.NewServer(userRepo, sessionRepo, groupRepo, ledgerSvc, worker, audit)

	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(middleware.AuthMiddleware(sessionRepo))
	router.Mount("/api", server.Routes())

	go purgeSessions(sessionRepo)

	slog.Info("server starting", "port", cfg.Server.Port)
	http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port), router)
}

// purgeSessions drops expired sessions once an hour.
func purgeSessions(sessions session.Repository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		purged, err := sessions.PurgeExpired(context.Background())
		if err != nil {
			slog.Error("failed to purge sessions", "error", err)
			continue
		}
		if purged > 0 {
			slog.Info("purged expired sessions", "count", purged)
		}
	}
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}
