package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"bridgelayer.app/internal/audit"
	"bridgelayer.app/internal/auth"
	"bridgelayer.app/internal/blacklist"
	"bridgelayer.app/internal/config"
	"bridgelayer.app/internal/httpapi"
	"bridgelayer.app/internal/oauth"
	"bridgelayer.app/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	db, err := sql.Open("pgx", cfg.DB.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	store := auth.NewPGStore(db)
	sink := audit.NewLogSink()

	// Without Redis the denylist is process-local; fine for a single
	// instance, not for a fleet.
	var denylist auth.Blacklist = blacklist.NewMemory()
	var redisClient redis.UniversalClient
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		denylist = blacklist.NewRedis(redisClient)
	}

	tokens, err := auth.NewTokenService(store,
		auth.WithSigningKey([]byte(cfg.Auth.SigningSecret)),
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithBlacklist(denylist),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	sessionOpts := []auth.SessionOption{}
	if cfg.GoogleEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		provider, err := oauth.NewProvider(ctx, "google", oauth.Config{
			ClientID:     cfg.OAuth.GoogleClientID,
			ClientSecret: cfg.OAuth.GoogleClientSecret,
			RedirectURL:  cfg.OAuth.GoogleRedirectURL,
			DiscoveryURL: cfg.OAuth.GoogleDiscoveryURL,
		})
		cancel()
		if err != nil {
			log.Fatalf("oauth provider: %v", err)
		}
		sessionOpts = append(sessionOpts, auth.WithOAuthVerifier(provider.Name(), provider))
	}

	sessions, err := auth.NewSessionService(store, tokens, sink, sessionOpts...)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}
	tenants, err := auth.NewTenantValidator(store)
	if err != nil {
		log.Fatalf("tenant validator: %v", err)
	}
	ghosts, err := auth.NewGhostService(store, sink)
	if err != nil {
		log.Fatalf("ghost service: %v", err)
	}

	api, err := httpapi.New(httpapi.Options{
		Sessions:           sessions,
		Tokens:             tokens,
		Tenants:            tenants,
		Ghosts:             ghosts,
		ReadyProbe:         httpapi.ReadyProbe{DB: db},
		Version:            version,
		CookieDomain:       cfg.Auth.CookieDomain,
		SecureCookies:      cfg.IsProduction(),
		LoginRatePerSecond: cfg.RateLimit.LoginPerSecond,
		LoginRateBurst:     cfg.RateLimit.LoginBurst,
	})
	if err != nil {
		log.Fatalf("http api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.MaxBodyBytes(api.Handler(), cfg.HTTP.MaxBodyBytes),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Printf("Starting bridgelayer-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	_ = db.Close()
	log.Println("Stopped")
}
