package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/storefy/storefy/internal/config"
	"github.com/storefy/storefy/internal/database"
	"github.com/storefy/storefy/internal/handler"
	"github.com/storefy/storefy/internal/queue"
	"github.com/storefy/storefy/internal/repository"
	"github.com/storefy/storefy/internal/resolver"
	"github.com/storefy/storefy/internal/router"
	"github.com/storefy/storefy/internal/service"
	"github.com/storefy/storefy/internal/session"
)

func main() {
	// Load .env in dev; absent file is fine, real env wins either way.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the session store runs on its process
	// local backend and the limiter/cache middlewares are skipped.
	rdb := config.NewRedisClient()
	var kv session.KV
	if rdb != nil {
		kv = session.NewRedisKV(rdb)
	} else {
		log.Println("redis unavailable, using in-memory session backend")
		kv = session.NewMemoryKV()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	stores := repository.NewStoreRepo(db)
	members := repository.NewMemberRepo(db)

	sessCfg := session.Config{
		PinTTL:           cfg.PinSessionTTL,
		WarningThreshold: cfg.PinWarnThreshold,
		CheckInterval:    cfg.PinCheckInterval,
	}
	registry := resolver.NewRegistry(kv, stores, sessCfg, resolver.Config{
		StoreLoadTimeout: cfg.StoreLoadTimeout,
	})
	registry.OnPinExpired = func(scope string) {
		_ = service.PublishSessionChanged(context.Background(), queue.SessionChangedEvent{
			Scope: scope,
			Kind:  queue.SessionPinExpired,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic PIN expiry sweep across all device scopes.
	go registry.Run(ctx)

	// Other instances' session changes invalidate our cached resolutions.
	go func() {
		err := queue.StartSessionConsumer(func(ev queue.SessionChangedEvent) {
			registry.Invalidate(ev.Scope)
		})
		if err != nil {
			log.Printf("session consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	authH := handler.NewAuthHandler(cfg, users, tokens, registry)
	pinH := handler.NewPinHandler(cfg, members, stores, registry)
	storeH := handler.NewStoreHandler(stores, registry)
	sessH := handler.NewSessionHandler(registry)
	pageH := handler.NewPageHandler(registry)
	sfH := handler.NewStorefrontHandler(stores)

	router.RegisterRoutes(e, sfH, rdb)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterSession(e, cfg, registry, sessH, storeH, pageH)
	router.RegisterPin(e, pinH, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
