package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/natemcgrady/web-based-ide/internal/audit"
	"github.com/natemcgrady/web-based-ide/internal/config"
	"github.com/natemcgrady/web-based-ide/internal/database"
	"github.com/natemcgrady/web-based-ide/internal/handlers"
	"github.com/natemcgrady/web-based-ide/internal/logging"
	"github.com/natemcgrady/web-based-ide/internal/preview"
	"github.com/natemcgrady/web-based-ide/internal/project"
	"github.com/natemcgrady/web-based-ide/internal/sandbox"
	"github.com/natemcgrady/web-based-ide/internal/session"
	"github.com/natemcgrady/web-based-ide/internal/terminal"
)

func main() {
	config.Load()
	logging.Init()
	defer logging.Close()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	ctx := context.Background()

	provider, err := sandbox.NewDockerProvider(ctx, sandbox.DockerConfig{
		Host:    config.Cfg.DockerHost,
		Image:   config.Cfg.SandboxImage,
		Workdir: config.Cfg.SandboxWorkdir,
	})
	if err != nil {
		log.Fatalf("Sandbox provider init: %v", err)
	}

	var store session.Store
	switch config.Cfg.SessionStore {
	case "database":
		store = session.NewDatabaseStore(database.DB)
	default:
		store = session.NewMemoryStore()
	}
	log.Printf("Session store: %s backend", config.Cfg.SessionStore)

	sessions := session.NewManager(store, provider, session.Config{
		MaxLifetime:      config.Cfg.SessionMaxLifetime,
		IdleTimeout:      config.Cfg.SessionIdleTimeout,
		MaxActivePerUser: config.Cfg.MaxActivePerUser,
		SandboxTimeout:   config.Cfg.SandboxTimeout,
		Ports:            config.SandboxPorts,
		PreviewPort:      config.Cfg.PreviewPort,
		DefaultCwd:       config.Cfg.SandboxWorkdir,
	})

	policy, err := config.LoadPolicy(config.Cfg.PolicyPath)
	if err != nil {
		log.Fatalf("Policy load: %v", err)
	}
	gate := terminal.NewGate(config.Cfg.MaxCommandLength, policy.BlockedPatterns)
	events := terminal.NewEventLog(config.Cfg.EventRingSize)

	// Per-session resources die with the session.
	sessions.OnRemove(events.Drop)
	sessions.OnRemove(func(sessionID string) {
		gate.DropCounters(sessionID)
	})

	auditLog := audit.NewLogger(database.DB)
	executor := terminal.NewExecutor(provider, sessions, events, gate, auditLog)
	projects := project.NewStore()

	api := &handlers.API{
		Sessions: sessions,
		Events:   events,
		Executor: executor,
		Gate:     gate,
		Projects: projects,
		Syncer:   project.NewSyncer(provider, projects),
		Previews: preview.NewService(provider, sessions, events, auditLog),
		Audit:    auditLog,
		Cfg:      config.Cfg,
	}

	// Background expiry sweep
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(fmt.Sprintf("@every %s", config.Cfg.CleanupInterval), func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), config.Cfg.CleanupInterval)
		defer cancel()
		if removed := sessions.Cleanup(sweepCtx); removed > 0 {
			log.Printf("Cleanup sweep removed %d sessions", removed)
		}
	}); err != nil {
		log.Fatalf("Schedule cleanup sweep: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: api.Routes(),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
