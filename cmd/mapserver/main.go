package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tilemap/internal/server"
	"tilemap/pkg/grid"
)

func main() {
	port := flag.String("port", "30000", "Server port")
	dbPath := flag.String("db", "data/maps.db", "SQLite database path or postgres:// URL")
	gridName := flag.String("grid", "isometric", "Grid preset name or grid JSON file")
	flag.Parse()

	// Use PORT env var if set (required for Render.com and similar platforms)
	actualPort := *port
	if envPort := os.Getenv("PORT"); envPort != "" {
		actualPort = envPort
		log.Printf("Using PORT from environment: %s", actualPort)
	}

	// Use DB_PATH env var if set, for cloud deployments with persistent disks
	// or a managed PostgreSQL database
	actualDBPath := *dbPath
	if envDBPath := os.Getenv("DB_PATH"); envDBPath != "" {
		actualDBPath = envDBPath
		log.Printf("Using DB_PATH from environment")
	}

	actualGrid := *gridName
	if envGrid := os.Getenv("TILEMAP_GRID"); envGrid != "" {
		actualGrid = envGrid
		log.Printf("Using TILEMAP_GRID from environment: %s", actualGrid)
	}

	g, err := grid.Resolve(actualGrid)
	if err != nil {
		log.Fatalf("Failed to load grid: %v", err)
	}

	cfg := server.Config{
		Addr:   ":" + actualPort,
		DBPath: actualDBPath,
		Grid:   g,
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle shutdown gracefully
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
