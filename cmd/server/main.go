// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/auth"
	"github.com/harborfun/fisharena/internal/cache"
	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/database"
	"github.com/harborfun/fisharena/internal/game"
	"github.com/harborfun/fisharena/internal/handlers"
	"github.com/harborfun/fisharena/internal/match"
	"github.com/harborfun/fisharena/internal/room"
	"github.com/harborfun/fisharena/internal/ws"
)

const sweepInterval = time.Minute

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.Load()

	redisCache, err := cache.Connect()
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := database.NewRoomStore()
	reg := room.NewRegistry(store, redisCache, cfg)
	engine := game.NewEngine()
	router := ws.NewRouter()
	session := game.NewSession(reg, engine, cfg, router, redisCache, database.UpdateGameStats)
	queue := match.NewRedisQueue(redisCache.Client(), match.DefaultQueueKey)
	matcher := match.NewMatcher(queue, reg, engine, redisCache, router, cfg)

	reg.OnCountdown = func(id uuid.UUID) {
		matcher.CancelReadyWatchdog(id)
		session.StartCountdown(id)
	}
	reg.OnCountdownCancel = session.CancelCountdown
	reg.OnEmpty = func(id uuid.UUID) {
		session.OnRoomEmpty(id)
		router.BroadcastRoom(id, game.RoomDissolved(id))
		router.UnbindAll(id)
	}

	go matcher.Run(ctx)
	go sweepLoop(ctx, reg, logger)

	srv := &handlers.Server{
		Reg:      reg,
		Session:  session,
		Matcher:  matcher,
		Cache:    redisCache,
		Provider: identityProvider(),
		Cfg:      cfg,
		Logger:   logger,
		WS: &ws.Handler{
			Router:  router,
			Reg:     reg,
			Session: session,
			Matcher: matcher,
			Cache:   redisCache,
			Logger:  logger,
		},
	}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	httpSrv := &http.Server{Addr: addr, Handler: srv.NewMux()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Infof("fisharena server running on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server exited: %v", err)
	}
}

// identityProvider picks the login-code exchanger. Without a configured
// platform endpoint the static dev provider is used.
func identityProvider() auth.IdentityProvider {
	// TODO: wire the platform identity client once its endpoint config lands
	return auth.StaticProvider{}
}

// sweepLoop periodically deletes rooms whose TTL lapsed.
func sweepLoop(ctx context.Context, reg *room.Registry, logger *logrus.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reg.SweepExpired(ctx); err != nil {
				logger.Errorf("room sweep: %v", err)
			}
		}
	}
}
