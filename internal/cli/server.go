package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizrally/internal/config"
	"quizrally/internal/domain"
	"quizrally/internal/game"
	"quizrally/internal/infra/memory"
	pginfra "quizrally/internal/infra/postgres"
	redisinfra "quizrally/internal/infra/redis"
	transport "quizrally/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo game.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store game.SessionStore
	switch {
	case pool != nil:
		store = pginfra.NewSessionStore(pool)
	case redisClient != nil:
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	default:
		store = memory.NewSessionStore()
	}

	scoring := game.DefaultScoring()
	if cfg.Game.Scoring.MaxPoints > 0 {
		scoring.MaxPoints = cfg.Game.Scoring.MaxPoints
	}
	if cfg.Game.Scoring.MinPoints > 0 {
		scoring.MinPoints = cfg.Game.Scoring.MinPoints
	}

	hub := transport.NewRoomHub()
	alloc := game.NewPinAllocator(cfg.Game.PinAttempts)
	registry := game.NewRegistry(alloc, config.TTLDuration(cfg.Game.RetireGrace, 30*time.Second))
	service := game.NewService(registry, quizRepo, game.SessionDeps{
		Rooms:         hub,
		Store:         store,
		Scoring:       scoring,
		FallbackLimit: config.TTLDuration(cfg.Game.QuestionTime, 15*time.Second),
	})
	wsHandler := transport.NewWSHandler(service, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizrally on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a built-in question bank for running without a
// database; swap the loader for the Postgres one in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"general-1": {
			ID: "general-1",
			Questions: []domain.Question{
				{
					Text:          "What is the capital of France?",
					Options:       []string{"London", "Berlin", "Paris", "Madrid"},
					CorrectAnswer: "Paris",
					TimeLimitSec:  15,
				},
				{
					Text:          "Which planet is known as the Red Planet?",
					Options:       []string{"Venus", "Mars", "Jupiter", "Saturn"},
					CorrectAnswer: "Mars",
					TimeLimitSec:  15,
				},
				{
					Text:          "What is the largest ocean on Earth?",
					Options:       []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean", "Pacific Ocean"},
					CorrectAnswer: "Pacific Ocean",
					TimeLimitSec:  15,
				},
				{
					Text:          "Who wrote 'Romeo and Juliet'?",
					Options:       []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"},
					CorrectAnswer: "William Shakespeare",
					TimeLimitSec:  15,
				},
			},
		},
	}
}
