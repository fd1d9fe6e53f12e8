package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/arpankumarde/havoc-machine/internal/adapter/adversary"
	"github.com/arpankumarde/havoc-machine/internal/adapter/artifact"
	"github.com/arpankumarde/havoc-machine/internal/adapter/llm"
	"github.com/arpankumarde/havoc-machine/internal/adapter/target"
	"github.com/arpankumarde/havoc-machine/internal/config"
	"github.com/arpankumarde/havoc-machine/internal/repository"
	"github.com/arpankumarde/havoc-machine/internal/service"
	v1 "github.com/arpankumarde/havoc-machine/internal/transport/http/v1"
	"github.com/arpankumarde/havoc-machine/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting havoc machine...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Adversarial model: %s", cfg.AdversaryModel)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize LLM-backed adversary
	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)
	adv := adversary.NewLLMAdversary(llmClient, cfg.AdversaryModel)

	// Initialize target dialer
	dialer := target.NewWSDialer(cfg.TargetTimeout)

	// Initialize artifact store
	ctx := context.Background()
	var artifacts artifact.Store
	if cfg.ReportBucket != "" {
		s3Store, err := artifact.NewS3Store(ctx, cfg.ReportBucket, "")
		if err != nil {
			log.Fatalf("Failed to initialize S3 artifact store: %v", err)
		}
		artifacts = s3Store
		log.Printf("Reports: s3://%s", cfg.ReportBucket)
	} else {
		artifacts = artifact.NewFileStore(cfg.ReportDir, cfg.ReportBaseURL)
		log.Printf("Reports: %s", cfg.ReportDir)
	}

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(db, adv, dialer, artifacts, policyEngine, cfg)

	// Initialize handler
	h := v1.NewHandler(svc)

	server := echo.New()
	server.HideBanner = true

	// Middleware
	server.Use(middleware.Logger())
	server.Use(middleware.Recover())
	server.Use(middleware.CORS())

	h.RegisterRoutes(server)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down havoc machine...")

	// Graceful shutdown; in-flight sessions keep their partial transcripts.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Havoc machine stopped")
}
