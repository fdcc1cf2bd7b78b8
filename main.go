package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/mailer"
	"storefront/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// --- Database ---
	db, err := repositories.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	deps := app.Deps{Config: cfg, DB: db}

	// --- Redis (rate limiting) ---
	deps.Redis = openRedis(cfg.Redis)

	// --- Reset mail ---
	var resetMailer *mailer.ResetMailer
	if cfg.SMTP.Enabled() {
		sender := mailer.NewSMTPSender(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Password: cfg.SMTP.Password,
		})
		resetMailer = mailer.NewResetMailer(sender, cfg.ResetPasswordURL, cfg.ResetTokenTTL)
		deps.Notifier = resetMailer
	} else {
		log.Println("SMTP_HOST is not set; password reset mail is disabled")
	}

	// --- RabbitMQ (order events, reset mail queue) ---
	if cfg.RabbitMQ != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:    cfg.RabbitMQ,
			Queues: []string{services.OrderEventsQueue, mailer.ResetQueue},
		})
		if err != nil {
			log.Printf("RabbitMQ unavailable, continuing without events: %v", err)
		} else {
			defer mqClient.Close()
			deps.Publisher = mqClient
			if resetMailer != nil {
				deps.Notifier = mailer.NewQueueNotifier(mqClient, resetMailer)
				if err := mqClient.Consume(mailer.ResetQueue, mailer.HandleResetJob(resetMailer)); err != nil {
					log.Printf("Failed to start reset mail consumer: %v", err)
				}
			}
			if err := mqClient.Consume(services.OrderEventsQueue, handleOrderEvent); err != nil {
				log.Printf("Failed to start order event consumer: %v", err)
			}
		}
	}

	application := app.New(deps)

	if cfg.SeedCatalog {
		if err := app.SeedCatalog(context.Background(), application.Products); err != nil {
			log.Printf("Catalog seeding failed: %v", err)
		}
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := application.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := application.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
	log.Println("Server gracefully stopped")
}

// openRedis connects to url and verifies the connection. It returns nil,
// disabling rate limiting, when url is empty or the server is unreachable.
func openRedis(url string) *redis.Client {
	if url == "" {
		log.Println("REDIS_URL is not set; rate limiting is disabled")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("Invalid REDIS_URL, rate limiting is disabled: %v", err)
		return nil
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unreachable, rate limiting is disabled: %v", err)
		client.Close()
		return nil
	}
	return client
}

// handleOrderEvent logs order.placed events.
func handleOrderEvent(body []byte) error {
	var event services.OrderPlacedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Dropping malformed order event: %s", body)
		return nil
	}
	log.Printf("Received %s event: order %d by user %d, total %s", event.Event, event.OrderID, event.UserID, event.Total)
	return nil
}
