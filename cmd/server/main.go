package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"tinytales/internal/ai"
	"tinytales/internal/cache"
	"tinytales/internal/config"
	"tinytales/internal/database"
	"tinytales/internal/handler"
	"tinytales/internal/logger"
	"tinytales/internal/messaging"
	"tinytales/internal/pipeline"
	"tinytales/internal/prompt"
	"tinytales/internal/repository"
	"tinytales/internal/service"
)

func main() {
	// Bootstrap logging until the structured logger is configured.
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer database.Close(pool, zapLogger)

	aiClient, err := ai.NewClient(cfg, zapLogger)
	if err != nil {
		return err
	}

	var segCache cache.SegmentCache = cache.NopSegmentCache{}
	if cfg.PrefetchEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		segCache = cache.NewRedisSegmentCache(redisClient, cfg.PrefetchTTL, zapLogger)
		zapLogger.Info("Prefetch cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	var publisher messaging.StoryEventPublisher = messaging.NopPublisher{}
	if cfg.EventsEnabled {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		publisher, err = messaging.NewRabbitMQStoryPublisher(conn, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		zapLogger.Info("Story event publishing enabled", zap.String("exchange", cfg.EventsExchange))
	}

	temperature := cfg.AITemperature
	maxTokens := cfg.AIMaxTokens
	params := ai.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	promptBuilder := prompt.NewBuilder(cfg.AIModel, cfg.AIPromptBudget, zapLogger)
	evaluator := pipeline.NewEvaluator(pipeline.DefaultVocabulary(), cfg.StrictChoiceMode)
	generator := pipeline.NewGenerator(aiClient, promptBuilder, evaluator, params, cfg.AIMaxRetries, zapLogger)

	repo := repository.NewPgStoryRepository(pool, zapLogger)
	storyService := service.NewStoryService(repo, generator, aiClient, segCache, publisher, service.Options{
		ShowIllustrations: cfg.ShowIllustrations,
		PrefetchEnabled:   cfg.PrefetchEnabled,
	}, zapLogger)

	storyHandler := handler.NewStoryHandler(storyService, zapLogger)
	router := handler.NewRouter(cfg, storyHandler, zapLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("HTTP server listening", zap.Int("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	zapLogger.Info("Server stopped")
	return nil
}
