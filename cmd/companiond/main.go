package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cairnhealth/cairn/internal/companion"
	"github.com/cairnhealth/cairn/internal/database"
	"github.com/cairnhealth/cairn/internal/logging"
	"github.com/cairnhealth/cairn/internal/mirror"
	"github.com/cairnhealth/cairn/internal/oplog"
)

func main() {
	logger := logging.Setup("companiond", os.Getenv("CAIRN_LOG_LEVEL"))

	hubURL := os.Getenv("CAIRN_HUB_URL")
	if hubURL == "" {
		log.Fatal("CAIRN_HUB_URL is required")
	}
	token := os.Getenv("CAIRN_HUB_TOKEN")
	if token == "" {
		log.Fatal("CAIRN_HUB_TOKEN is required")
	}
	patientID, err := strconv.ParseInt(os.Getenv("CAIRN_PATIENT_ID"), 10, 64)
	if err != nil || patientID <= 0 {
		log.Fatal("CAIRN_PATIENT_ID must be a positive integer")
	}

	port := os.Getenv("CAIRN_COMPANION_PORT")
	if port == "" {
		port = "8090"
	}
	dbPath := os.Getenv("CAIRN_COMPANION_DB_PATH")
	if dbPath == "" {
		dbPath = "companion.db"
	}

	db, err := database.OpenLocal(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	mirrorStore, err := mirror.NewStore(db)
	if err != nil {
		log.Fatalf("failed to init mirror: %v", err)
	}
	oplogStore, err := oplog.NewStore(db)
	if err != nil {
		log.Fatalf("failed to init oplog: %v", err)
	}

	remote := companion.NewClient(hubURL, token)
	syncer := oplog.NewSyncer(oplogStore, companion.NewApplier(remote), logger.With("component", "syncer"))

	// syncCh serializes Synchronize calls from the monitor callback, the
	// periodic ticker, and post-enqueue triggers.
	syncCh := make(chan struct{}, 1)
	triggerSync := func() {
		select {
		case syncCh <- struct{}{}:
		default:
		}
	}
	requestSync := func(context.Context) { triggerSync() }

	monitor := companion.NewMonitor(remote, 0, requestSync, logger.With("component", "connectivity"))

	zoneSvc := companion.NewSafeZoneService(remote, mirrorStore, oplogStore, triggerSync, logger.With("component", "zones"))
	alertSvc := companion.NewAlertService(remote, mirrorStore, oplogStore, triggerSync, logger.With("component", "alerts"))
	personSvc := companion.NewPersonService(remote, mirrorStore, oplogStore, triggerSync, logger.With("component", "persons"))
	api := companion.NewAPI(patientID, zoneSvc, alertSvc, personSvc, oplogStore, monitor, logger.With("component", "api"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)
	defer monitor.Stop()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				requestSync(ctx)
			case <-syncCh:
				if !monitor.Online() {
					continue
				}
				if _, err := syncer.Synchronize(ctx); err != nil && ctx.Err() == nil {
					logger.Error("synchronization pass", "error", err)
				}
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         "127.0.0.1:" + port,
		Handler:      api.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Cairn companion running at http://127.0.0.1:%s\n", port)
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
