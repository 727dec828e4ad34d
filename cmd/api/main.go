// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/backend/memory"
	"github.com/workhub-social/chatsync/internal/client"
	"github.com/workhub-social/chatsync/internal/config"
	"github.com/workhub-social/chatsync/internal/counter"
	"github.com/workhub-social/chatsync/internal/handler"
	"github.com/workhub-social/chatsync/internal/middleware"
	natsclient "github.com/workhub-social/chatsync/internal/nats"
	"github.com/workhub-social/chatsync/internal/postgres"
	"github.com/workhub-social/chatsync/internal/service"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/tracing"
)

// infra is the backend chosen by configuration plus what the server needs
// around it.
type infra struct {
	backend backend.Backend
	blobs   backend.BlobReader
	checks  map[string]handler.Check
	closers []func()
}

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting API server", zap.String("backend", cfg.BackendMode))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatsync", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	fileBaseURL := strings.TrimRight(cfg.PublicBaseURL, "/") + "/files"

	var deps *infra
	switch cfg.BackendMode {
	case config.BackendHosted:
		deps, err = connectHosted(ctx, cfg, fileBaseURL, log)
	default:
		deps = inMemory(fileBaseURL, log)
	}
	if err != nil {
		log.Error("failed to set up backend", zap.Error(err))
		os.Exit(1)
	}
	defer deps.close()

	// Initialize services
	conversationSvc := service.NewConversationService(deps.backend, log)
	messageSvc := service.NewMessageService(deps.backend, log)
	postSvc := service.NewPostService(deps.backend, log)
	peopleSvc := service.NewPeopleService(deps.backend, log)
	jobSvc := service.NewJobService(deps.backend, log)

	registry := client.NewRegistry(client.Deps{
		Conversations:   conversationSvc,
		Messages:        messageSvc,
		Posts:           postSvc,
		People:          peopleSvc,
		Jobs:            jobSvc,
		Feed:            deps.backend,
		Logger:          log,
		MessagePageSize: cfg.MessagePageSize,
		PostPageSize:    cfg.PostPageSize,
		JobPageSize:     cfg.JobPageSize,
	})
	defer registry.Close()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(deps.checks)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, conversationSvc, registry, cfg.MessagePageSize, log)
	postHandler := handler.NewPostHandler(postSvc, messageSvc, cfg.PostPageSize, log)
	peopleHandler := handler.NewPeopleHandler(peopleSvc, log)
	jobHandler := handler.NewJobHandler(jobSvc, cfg.JobPageSize, log)
	streamHandler := handler.NewStreamHandler(registry, cfg.HeartbeatInterval, log)
	fileHandler := handler.NewFileHandler(deps.blobs, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Stored files; browsers pass the token as ?access_token=
	r.With(middleware.Auth(cfg.JWTSecret)).Get("/files/*", fileHandler.Get)

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.TrackUser)
		r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/inbox/stream", streamHandler.Inbox)
		r.Post("/sessions/{id}/more", streamHandler.More)

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Post("/read", conversationHandler.MarkRead)

				// Messages
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)

				// Streaming
				r.Get("/stream", streamHandler.Chat)
			})
		})

		// Posts
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.List)
			r.Post("/", postHandler.Create)
			r.Get("/stream", streamHandler.Home)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", postHandler.Delete)
				r.Post("/like", postHandler.Like)
				r.Delete("/like", postHandler.Unlike)
				r.Post("/comments", postHandler.Comment)
			})
		})
		r.Delete("/comments/{id}", postHandler.DeleteComment)

		r.Put("/profile", postHandler.UpdateProfile)

		// Profiles and people
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", postHandler.Profile)
			r.Post("/follow", peopleHandler.Follow)
			r.Delete("/follow", peopleHandler.Unfollow)
			r.Get("/people", peopleHandler.People)
		})
		r.Get("/notifications", peopleHandler.Notifications)
		r.Post("/notifications/read", peopleHandler.ReadNotifications)

		// Jobs
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobHandler.List)
			r.Post("/", jobHandler.Create)
			r.Get("/stream", streamHandler.Jobs)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", jobHandler.Get)
				r.Put("/", jobHandler.Update)
				r.Post("/like", jobHandler.Like)
				r.Delete("/like", jobHandler.Unlike)
			})
		})
	})

	// Cancelled on shutdown so open streams return.
	serveCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		BaseContext:  func(net.Listener) context.Context { return serveCtx },
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	stopStreams()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func inMemory(fileBaseURL string, log *logger.Logger) *infra {
	b, parts := memory.New(fileBaseURL, log)
	return &infra{
		backend: b,
		blobs:   parts.Blobs,
		checks:  map[string]handler.Check{"store": b.Ping},
	}
}

func connectHosted(ctx context.Context, cfg *config.Config, fileBaseURL string, log *logger.Logger) (*infra, error) {
	deps := &infra{checks: make(map[string]handler.Check)}
	fail := func(err error) (*infra, error) {
		deps.close()
		return nil, err
	}

	// Postgres
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	deps.closers = append(deps.closers, func() { db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		return fail(err)
	}
	store := postgres.NewStore(db, log)

	// Redis
	rdb, err := counter.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fail(err)
	}
	deps.closers = append(deps.closers, func() { rdb.Close() })
	counters := counter.NewRedis(rdb)

	// NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		return fail(err)
	}
	deps.closers = append(deps.closers, natsClient.Close)

	// Ensure JetStream stream exists
	changeFeed := natsclient.NewChangeFeed(natsClient, log)
	if err := changeFeed.EnsureStream(ctx); err != nil {
		return fail(err)
	}
	blobs, err := natsclient.NewObjectBlobs(ctx, natsClient, cfg.NATSBucket, fileBaseURL)
	if err != nil {
		return fail(err)
	}

	deps.backend = backend.NewHosted(store, counters, changeFeed, blobs, log)
	deps.blobs = blobs
	deps.checks["postgres"] = store.Ping
	deps.checks["redis"] = counters.Ping
	deps.checks["nats"] = natsClient.Ping
	return deps, nil
}
