package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"

	"whisperfeed/auth"
	"whisperfeed/broker"
	"whisperfeed/contract"
	"whisperfeed/content"
	"whisperfeed/domain/event"
	"whisperfeed/httpapi"
	"whisperfeed/internal"
	"whisperfeed/mail"
	"whisperfeed/projection"
	"whisperfeed/ratelimit"
	"whisperfeed/repositories"
	"whisperfeed/runtime/workers"
	"whisperfeed/services"
	"whisperfeed/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Full-text index (Bluge)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()

	// 4. Repositories
	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return fmt.Errorf("message repository: %w", err)
	}
	defer func() { _ = messageRepository.Close() }()
	identityRepository := repositories.NewIdentityRepository(db)
	searchIndex := repositories.NewSearchIndex(writer, log)

	// 5. Rate limiter: Redis when configured, in-process otherwise
	limiter, err := buildLimiter(config)
	if err != nil {
		return err
	}

	// 6. Mailer: SMTP when configured, log output otherwise
	mailer, err := buildMailer(config, log)
	if err != nil {
		return err
	}

	// 7. Telemetry, broker and projections
	telemetryChan := make(chan event.Event, config.BufferSize)
	feedBroker := broker.New(log, config.BackfillWindow, config.SubscriberBufferSize, telemetryChan)
	defer feedBroker.Close()
	trends := projection.NewTrends()

	// Rebuild in-memory state from the store: the trends projection replays
	// the full history, the broker backlog only the backfill window.
	history, err := messageRepository.ReadSince(0, 0)
	if err != nil {
		return fmt.Errorf("replay history: %w", err)
	}
	for _, message := range history {
		trends.Consume(event.MessageAdmitted{Message: message})
	}
	recent, err := messageRepository.Recent(config.BackfillWindow)
	if err != nil {
		return fmt.Errorf("warm backlog: %w", err)
	}
	for _, message := range recent {
		feedBroker.Publish(message)
	}
	log.Info("State rebuilt from store", "messages", len(history), "backlog", len(recent))

	// 8. Admission pipeline
	requests := make(chan workers.AdmissionRequest, config.AdmissionBufferSize)
	committer := workers.NewAdmissionCommitter(log, requests, messageRepository, feedBroker,
		[]contract.EventSink{
			sink.NewIndexSink(searchIndex, log),
			sink.NewTrendsSink(trends),
		})

	handlers := []event.Handler{
		event.NewChannelCapacityHandler(log, config.LowCapacityThreshold),
		event.NewSubscriberDroppedHandler(log),
	}
	telemetryWorker := workers.NewTelemetryWorker(log, telemetryChan, handlers)
	capacityWorker := workers.NewChannelCapacityWorker(log,
		[]workers.NamedChannel{
			{Name: "admission", Channel: requests},
			{Name: "telemetry", Channel: telemetryChan},
		}, telemetryChan, config.MetricInterval)

	// 9. Services
	tokens := auth.NewTokenService([]byte(config.SigningKey), config.TokenTTL)
	authService := services.NewAuthService(identityRepository, tokens, mailer, log,
		config.EventCode, config.BaseURL)
	feedService := services.NewFeedService(tokens, limiter,
		content.NewValidator(config.MaxContentLength),
		requests, feedBroker, messageRepository, searchIndex, trends, log)

	// 10. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 11. Supervision
	sup := workers.NewSupervisor(log, telemetryChan, config.RestartInterval)
	sup.Add(committer, telemetryWorker, capacityWorker)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 12. HTTP server
	secureCookies := strings.HasPrefix(config.BaseURL, "https://")
	router := httpapi.SetupRoutes(
		httpapi.NewHandlers(authService, feedService, log, secureCookies),
		config.Origins())
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 13. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 14. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

func buildLimiter(config internal.Config) (ratelimit.Limiter, error) {
	if config.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(config.Cooldown), nil
	}
	options, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return ratelimit.NewRedisLimiter(redis.NewClient(options), config.Cooldown), nil
}

func buildMailer(config internal.Config, log *slog.Logger) (mail.Mailer, error) {
	if config.SMTPHost == "" {
		return mail.NewLogMailer(log), nil
	}
	return mail.NewSMTPMailer(config.SMTPHost, config.SMTPPort,
		config.SMTPUsername, config.SMTPPassword, config.SMTPFrom, log)
}
