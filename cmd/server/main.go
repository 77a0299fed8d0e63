package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"appraiser-gateway/internal/audit"
	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	"appraiser-gateway/internal/identify"
	"appraiser-gateway/internal/platform/config"
	"appraiser-gateway/internal/platform/httpserver"
	"appraiser-gateway/internal/platform/logger"
	"appraiser-gateway/internal/platform/metrics"
	"appraiser-gateway/internal/platform/redis"
	"appraiser-gateway/internal/registration"
	"appraiser-gateway/internal/session"
	httptransport "appraiser-gateway/internal/transport/http"
)

const auditInboxSize = 256

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	m := metrics.New()

	// Stores. Without POSTGRES_URL everything runs in memory, which is the
	// development and demo mode.
	var (
		sessionStore      session.Store
		registrationStore registration.Store
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err.Error())
			os.Exit(1)
		}
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("failed to ping postgres", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		sessionStore = session.NewPostgres(db)
		registrationStore = registration.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		sessionStore = session.NewMemoryStore()
		registrationStore = registration.NewMemoryStore()
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	// Registration cache in front of the directory, optional.
	var cache directory.RegistrationCache
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = directory.NewRedisCache(redisClient, config.RegistrationCacheTTL)
		log.Info("registration cache enabled")
	}

	// Audit trail: non-blocking publisher draining into a store-backed
	// worker.
	auditStore := audit.NewInMemoryStore()
	auditInbox := make(chan audit.Event, auditInboxSize)
	auditWorker := audit.NewWorker(auditStore, auditInbox)
	auditPublisher := audit.NewAsyncPublisher(auditInbox)

	// Domain services.
	verifierOpts := []directory.VerifierOption{directory.WithLogger(log)}
	if cache != nil {
		verifierOpts = append(verifierOpts, directory.WithCache(cache))
	}
	verifier, err := directory.NewVerifier(directory.NewHTTPClient(cfg.DirectoryURL), verifierOpts...)
	if err != nil {
		log.Error("failed to build verifier", "error", err.Error())
		os.Exit(1)
	}

	matcherClient := biometric.NewHTTPClient(cfg.MatcherURL)
	matcher, err := biometric.NewMatcher(matcherClient,
		biometric.WithLogger(log),
		biometric.WithThreshold(cfg.MatchThreshold),
	)
	if err != nil {
		log.Error("failed to build matcher", "error", err.Error())
		os.Exit(1)
	}

	tokens := session.NewTokenService(cfg.JWTSigningKey, cfg.SessionTTL)
	issuer, err := session.NewIssuer(sessionStore, tokens, session.WithLogger(log))
	if err != nil {
		log.Error("failed to build session issuer", "error", err.Error())
		os.Exit(1)
	}

	workflow, err := identify.New(verifier, matcher,
		identify.WithLogger(log),
		identify.WithMetrics(m),
		identify.WithAuditPublisher(auditPublisher),
		identify.WithSessionIssuer(issuer),
	)
	if err != nil {
		log.Error("failed to build workflow", "error", err.Error())
		os.Exit(1)
	}

	registrationService, err := registration.New(registrationStore,
		registration.WithLogger(log),
		registration.WithMetrics(m),
		registration.WithAuditPublisher(auditPublisher),
		registration.WithEnroller(matcherClient),
	)
	if err != nil {
		log.Error("failed to build registration service", "error", err.Error())
		os.Exit(1)
	}

	handler := httptransport.NewHandler(
		httptransport.NewIdentifyHandler(workflow, log),
		httptransport.NewRegistrationHandler(registrationService, log),
		httptransport.NewSessionHandler(sessionStore, log),
		session.NewTokenServiceAdapter(tokens),
		log,
		m,
	)
	srv := httpserver.New(cfg.Addr, handler.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return auditWorker.Run(ctx)
	})
	group.Go(func() error {
		log.Info("starting appraiser gateway", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
