package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	c "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/core"
	d "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/data"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// load in environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}

	dataDir := envOrDefault("DATA_DIR", "historical_data")
	outputDir := envOrDefault("OUTPUT_DIR", "results")
	addr := envOrDefault("LISTEN_ADDR", c.DefaultAddr)

	sc := c.ServiceContext{
		Context: ctx,
		Store:   d.NewFileStore(dataDir, outputDir),
	}

	// get http server, makes all of the endpoints and routes
	s := c.GetHttpServer(sc, addr)

	// start http server in goroutine
	go func() {
		log.Printf("Starting UMC cycle engine on %s (data: %s, output: %s)", s.Addr, dataDir, outputDir)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// golang channel, will wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	log.Println("Received shutdown signal, shutting down gracefully...")

	// this gives the server 10 seconds to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped successfully")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
