package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cairnhealth/cairn/internal/alert"
	"github.com/cairnhealth/cairn/internal/auth"
	"github.com/cairnhealth/cairn/internal/backup"
	"github.com/cairnhealth/cairn/internal/geocode"
	"github.com/cairnhealth/cairn/internal/geofence"
	"github.com/cairnhealth/cairn/internal/handler"
	"github.com/cairnhealth/cairn/internal/middleware"
	"github.com/cairnhealth/cairn/internal/push"
	"github.com/cairnhealth/cairn/internal/store"
	ws "github.com/cairnhealth/cairn/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	verifier      *auth.Verifier
	userStore     *store.UserStore
	userH         *handler.UserHandler
	safeZoneH     *handler.SafeZoneHandler
	alertH        *handler.AlertHandler
	locationH     *handler.LocationHandler
	pushH         *handler.PushHandler
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	dispatcher    *alert.Dispatcher
	logger        *slog.Logger
}

func New(db *sql.DB, verifier *auth.Verifier, geocodeSvc *geocode.Service, backupCfg backup.Config, pushCfg push.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	zoneStore := store.NewSafeZoneStore(db)
	alertStore := store.NewAlertStore(db)
	pushStore := store.NewPushStore(db)

	var pushSvc *push.Service
	var pushH *handler.PushHandler
	var pusher alert.PushSender
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
		pusher = pushSvc
	}

	dispatcher := alert.NewDispatcher(alertStore, userStore, pushStore, hub, pusher,
		logger.With("component", "dispatcher"))
	evaluator := geofence.NewEvaluator(zoneStore, dispatcher, logger.With("component", "geofence"))

	backupMgr := backup.NewManager(backupCfg, db, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		verifier:      verifier,
		userStore:     userStore,
		userH:         handler.NewUserHandler(userStore, logger.With("component", "user")),
		safeZoneH:     handler.NewSafeZoneHandler(zoneStore, geocodeSvc, logger.With("component", "safe_zone")),
		alertH:        handler.NewAlertHandler(alertStore, dispatcher, logger.With("component", "alert")),
		locationH:     handler.NewLocationHandler(evaluator, logger.With("component", "location")),
		pushH:         pushH,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Dispatcher returns the alert dispatcher for scheduled alert producers.
func (s *Server) Dispatcher() *alert.Dispatcher {
	return s.dispatcher
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// WebSocket authenticates through its own handshake token
	outerMux.HandleFunc("GET /ws", s.rateLimitedHandler(
		ws.HandleWebSocket(s.hub, s.verifier, s.logger.With("component", "websocket"))))

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.verifier, s.userStore)
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 30, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// User directory
	mux.HandleFunc("POST /api/users", s.userH.Create)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("POST /api/patients/{id}/caregivers", s.userH.AddCaregiver)
	mux.HandleFunc("GET /api/patients/{id}/directory", s.userH.Directory)

	// Safe zone API routes. Mutations are caregiver-only; patients read.
	mux.Handle("POST /api/safe-zones", middleware.RequireCaregiver(http.HandlerFunc(s.safeZoneH.Create)))
	mux.HandleFunc("GET /api/safe-zones/{id}", s.safeZoneH.Get)
	mux.Handle("PUT /api/safe-zones/{id}", middleware.RequireCaregiver(http.HandlerFunc(s.safeZoneH.Update)))
	mux.Handle("DELETE /api/safe-zones/{id}", middleware.RequireCaregiver(http.HandlerFunc(s.safeZoneH.Delete)))
	mux.HandleFunc("GET /api/patients/{id}/safe-zones", s.safeZoneH.List)

	// Alert API routes
	mux.HandleFunc("POST /api/alerts", s.alertH.Create)
	mux.HandleFunc("GET /api/alerts/{id}", s.alertH.Get)
	mux.HandleFunc("PATCH /api/alerts/{id}/status", s.alertH.UpdateStatus)
	mux.HandleFunc("GET /api/patients/{id}/alerts", s.alertH.List)

	// Agent endpoints: location reporting and scheduled reminders
	mux.HandleFunc("POST /api/agent/check-location", s.locationH.CheckLocation)
	mux.HandleFunc("POST /api/agent/medication-reminder", s.alertH.MedicationReminder)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}
}
