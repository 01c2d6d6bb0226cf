package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"deepvision-backend/cmd"
	"deepvision-backend/internal/api"
	"deepvision-backend/internal/auth"
	"deepvision-backend/internal/database"
	"deepvision-backend/internal/messaging"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	DatabaseURL       string        `env:"DATABASE_URL,notEmpty,required"`
	JWTSecret         string        `env:"JWT_SECRET,notEmpty,required"`
	TokenTTL          time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	AMQPURL           string        `env:"AMQP_URL"`
	APIPort           string        `env:"API_PORT" envDefault:"4001"`
	MaxBodyBytes      int64         `env:"MAX_BODY_BYTES" envDefault:"104857600"`
	CORSOrigins       string        `env:"CORS_ORIGINS" envDefault:"http://localhost:3000,http://localhost:3001,http://localhost:3002"`
	BootstrapUsername string        `env:"BOOTSTRAP_USERNAME"`
	BootstrapPassword string        `env:"BOOTSTRAP_PASSWORD"`
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Reset tokens are handed to the delivery queue when one is configured;
	// without it the token is only returned to the API caller.
	var publisher messaging.Publisher
	if cfg.AMQPURL != "" {
		rabbitPublisher, err := messaging.NewRabbitMQPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rabbitPublisher.Close()
		publisher = rabbitPublisher
	}

	signer := auth.NewSigner(cfg.JWTSecret, cfg.TokenTTL)
	credentials := auth.NewCredentialStore(db, publisher)

	if cfg.BootstrapUsername != "" && cfg.BootstrapPassword != "" {
		if err := credentials.EnsureDefaultUser(context.Background(), cfg.BootstrapUsername, cfg.BootstrapPassword); err != nil {
			log.Fatalf("Failed to bootstrap default user: %v", err)
		}
	}

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                    // Log requests
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set request timeout
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(api.LimitRequestBody(cfg.MaxBodyBytes))

	authService := api.NewAuthService(credentials, signer)
	authService.AddRoutes(r)

	chatService := api.NewChatService(db, signer)
	chatService.AddRoutes(r)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
