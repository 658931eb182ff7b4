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

	"github.com/cairnhealth/cairn/internal/auth"
	"github.com/cairnhealth/cairn/internal/backup"
	"github.com/cairnhealth/cairn/internal/database"
	"github.com/cairnhealth/cairn/internal/geocode"
	"github.com/cairnhealth/cairn/internal/logging"
	"github.com/cairnhealth/cairn/internal/push"
	"github.com/cairnhealth/cairn/internal/server"
)

func main() {
	logger := logging.Setup("cairnd", os.Getenv("CAIRN_LOG_LEVEL"))

	port := os.Getenv("CAIRN_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CAIRN_DB_PATH")
	if dbPath == "" {
		dbPath = "cairn.db"
	}

	jwtSecret := os.Getenv("CAIRN_JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("CAIRN_JWT_SECRET is required")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	geocodeSvc := geocode.NewService(geocode.Config{
		LicenseKey: os.Getenv("CAIRN_MELISSA_KEY"),
		Country:    os.Getenv("CAIRN_MELISSA_COUNTRY"),
	})

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("CAIRN_S3_ENDPOINT"),
			Bucket:    os.Getenv("CAIRN_S3_BUCKET"),
			Region:    os.Getenv("CAIRN_S3_REGION"),
			AccessKey: os.Getenv("CAIRN_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("CAIRN_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("CAIRN_BACKUP_PASSPHRASE"),
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  os.Getenv("CAIRN_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("CAIRN_VAPID_PRIVATE_KEY"),
		Subscriber:      os.Getenv("CAIRN_VAPID_SUBSCRIBER"),
	}

	srv := server.New(db, auth.NewVerifier(jwtSecret), geocodeSvc, backupCfg, pushCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Periodic rate limiter cleanup
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Cairn hub running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
