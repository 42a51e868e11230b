package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/config"
	"github.com/ayurclinic/clinic/internal/domain/identity"
	"github.com/ayurclinic/clinic/internal/domain/notification"
	"github.com/ayurclinic/clinic/internal/domain/staffing"
	"github.com/ayurclinic/clinic/internal/domain/therapy"
	"github.com/ayurclinic/clinic/internal/platform/audit"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/internal/platform/db"
	"github.com/ayurclinic/clinic/internal/platform/metrics"
	"github.com/ayurclinic/clinic/internal/platform/middleware"
	"github.com/ayurclinic/clinic/internal/platform/sandbox"
	"github.com/ayurclinic/clinic/internal/platform/websocket"
)

const version = "0.1.0"

// repositories groups the record stores selected by STORE_DRIVER.
type repositories struct {
	users         identity.UserRepository
	patients      identity.PatientRepository
	therapies     therapy.Repository
	sessions      therapy.SessionRepository
	leaves        staffing.LeaveRepository
	notifications notification.Repository
	tx            db.Transactor
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		users:         identity.NewUserRepoPG(pool),
		patients:      identity.NewPatientRepoPG(pool),
		therapies:     therapy.NewRepoPG(pool),
		sessions:      therapy.NewSessionRepoPG(pool),
		leaves:        staffing.NewLeaveRepoPG(pool),
		notifications: notification.NewRepoPG(pool),
		tx:            db.NewPGTransactor(pool),
	}
}

func memoryRepositories() repositories {
	return repositories{
		users:         identity.NewUserRepoMemory(),
		patients:      identity.NewPatientRepoMemory(),
		therapies:     therapy.NewRepoMemory(),
		sessions:      therapy.NewSessionRepoMemory(),
		leaves:        staffing.NewLeaveRepoMemory(),
		notifications: notification.NewRepoMemory(),
		tx:            db.NopTransactor{},
	}
}

// app is the wired server. Close releases the pool and the audit store.
type app struct {
	echo     *echo.Echo
	auditLog *audit.Log
	seeder   *sandbox.Seeder
	metrics  *metrics.Metrics
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openAuditStore returns the backend named by AUDIT_STORE. pool is nil for
// the memory driver.
func openAuditStore(cfg *config.Config, pool *pgxpool.Pool) (audit.Store, func(), error) {
	switch cfg.ResolvedAuditStore() {
	case config.AuditStorePostgres:
		if pool == nil {
			return nil, nil, fmt.Errorf("postgres audit store needs a database connection")
		}
		return audit.NewPGStore(pool), func() {}, nil
	case config.AuditStoreLevelDB:
		store, err := audit.OpenLevelDBStore(cfg.AuditLevelDBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return audit.NewMemoryStore(), func() {}, nil
	}
}

// resolveSigningKey returns the JWT key. Development without JWT_SECRET gets
// a random per-process key, so tokens do not survive a restart.
func resolveSigningKey(cfg *config.Config) ([]byte, bool, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), false, nil
	}
	if !cfg.IsDev() {
		return nil, false, fmt.Errorf("JWT_SECRET is required outside development")
	}
	buf := make([]byte, 32)
	if _, err := crypto_rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), true, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &app{metrics: metrics.New()}

	// Record stores
	var pool *pgxpool.Pool
	var repos repositories
	if cfg.StoreDriver == config.StoreDriverPostgres {
		p, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		pool = p
		a.closers = append(a.closers, pool.Close)
		repos = postgresRepositories(pool)
		logger.Info().Msg("connected to database")
	} else {
		repos = memoryRepositories()
		logger.Warn().Msg("using in-memory record store; data is lost on exit")
	}

	// Audit chain
	store, closeStore, err := openAuditStore(cfg, pool)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)
	a.auditLog, err = audit.NewLog(ctx, store)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auditLog.SetLogger(logger)
	a.auditLog.SetMetrics(a.metrics)
	logger.Info().Str("store", cfg.ResolvedAuditStore()).Int64("entries", a.auditLog.Len()).Msg("audit log ready")

	key, generated, err := resolveSigningKey(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if generated {
		logger.Warn().Msg("JWT_SECRET not set; using a random development signing key")
	}
	tokens := auth.NewTokenIssuer("clinic-server", key, cfg.JWTTTL)

	// Services
	hub := websocket.NewHub()
	hub.SetLogger(logger)

	notifySvc := notification.NewService(repos.notifications, notification.NewTemplateEngine(), repos.users)
	notifySvc.SetPublisher(hub)
	notifySvc.SetLogger(logger)

	staffSvc := staffing.NewService(repos.users, repos.patients, repos.therapies, repos.leaves, repos.tx, a.auditLog)
	staffSvc.SetNotifier(notifySvc)
	staffSvc.SetMetrics(a.metrics)
	staffSvc.SetLogger(logger)

	identitySvc := identity.NewService(repos.users, repos.patients, a.auditLog, tokens)
	identitySvc.SetDoctorAssigner(staffSvc)
	identitySvc.SetLogger(logger)

	therapySvc := therapy.NewService(repos.therapies, repos.sessions, repos.users, repos.patients, repos.tx, a.auditLog)
	therapySvc.SetPractitionerAssigner(staffSvc)
	therapySvc.SetNotifier(notifySvc)
	therapySvc.SetMetrics(a.metrics)
	therapySvc.SetLogger(logger)

	a.seeder = sandbox.NewSeeder(identitySvc, therapySvc, sandbox.DefaultSeedConfig())
	a.seeder.SetLogger(logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	jwtCfg := auth.JWTConfig{Issuer: "clinic-server", SigningKey: key}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}

	// API groups
	public := e.Group("/api/v1")
	apiV1 := e.Group("/api/v1", authMW)

	identity.NewHandler(identitySvc).RegisterRoutes(apiV1, public)
	therapy.NewHandler(therapySvc).RegisterRoutes(apiV1)
	staffing.NewHandler(staffSvc).RegisterRoutes(apiV1)
	notification.NewHandler(notifySvc).RegisterRoutes(apiV1)
	audit.NewHandler(a.auditLog).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	a.echo = e
	return a, nil
}
