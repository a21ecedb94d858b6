package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LuisFaxas/faxas-property-sub000/internal/audit"
	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/config"
	"github.com/LuisFaxas/faxas-property-sub000/internal/httpapi"
	"github.com/LuisFaxas/faxas-property-sub000/internal/obs"
	"github.com/LuisFaxas/faxas-property-sub000/internal/ratelimit"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
	"github.com/LuisFaxas/faxas-property-sub000/internal/store/memory"
	"github.com/LuisFaxas/faxas-property-sub000/internal/store/pg"
)

var version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("FAXAS_BUILD_COMMIT"))

	// Persistence: Postgres when a DSN is set, process memory otherwise.
	var (
		authStore  auth.Store
		auditSink  audit.Sink
		cols       []scoped.Collection
		readyProbe httpapi.ReadyProbe
		closeStore func() error
	)
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		authStore = store
		auditSink = store.AuditSink()
		cols = store.Collections()
		readyProbe = httpapi.ReadyProbe{DB: store.DB()}
		closeStore = store.Close
	} else {
		log.Println("FAXAS_PG_DSN not set; using in-memory persistence")
		store := memory.NewStore()
		authStore = store
		auditSink = audit.LogSink{}
		cols = memory.Collections()
	}

	auditLogger, err := audit.NewLogger(auditSink, cfg.AuditBuffer)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}

	verifier, err := auth.NewJWTVerifier(
		[]byte(cfg.AuthSecret), cfg.JWTIssuer, cfg.JWTAudience,
		auth.WithLeeway(cfg.JWTLeeway),
	)
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}

	resolver, err := auth.NewResolver(authStore,
		auth.WithAdminBypass(cfg.AdminBypass),
		auth.WithResolverSink(auditLogger),
	)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	builder, err := auth.NewContextBuilder(resolver)
	if err != nil {
		log.Fatalf("context builder: %v", err)
	}
	perms, err := auth.NewPermissionResolver(authStore, auditLogger)
	if err != nil {
		log.Fatalf("permission resolver: %v", err)
	}

	// Rate-limit counters: Redis when configured, per-process otherwise.
	var limiterStore ratelimit.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiterStore = ratelimit.NewRedisStore(client)
	} else {
		limiterStore = ratelimit.NewMemoryStore()
	}
	limiter, err := ratelimit.New(limiterStore)
	if err != nil {
		log.Fatalf("rate limiter: %v", err)
	}

	data, err := scoped.NewData(cols...)
	if err != nil {
		log.Fatalf("data: %v", err)
	}

	api, err := httpapi.New(httpapi.Deps{
		Verifier:      verifier,
		Resolver:      resolver,
		Builder:       builder,
		Perms:         perms,
		Store:         authStore,
		Data:          data,
		Limiter:       limiter,
		Audit:         auditLogger,
		ReadyProbe:    readyProbe,
		Version:       version,
		ThrottleRPS:   cfg.ThrottleRPS,
		ThrottleBurst: cfg.ThrottleBurst,
	})
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting faxas-property-api %s (%s)", version, cfg)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	// Flush the audit trail before the sinks go away.
	_ = auditLogger.Close()
	if closeStore != nil {
		_ = closeStore()
	}
	log.Println("Stopped")
}
