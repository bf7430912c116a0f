// cmd/recorder/main.go is the asynchronous persistence worker: it pops
// finished-game records from the Redis queue and writes them to PostgreSQL.
package main

import (
	"context"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/database"
	"github.com/harborfun/fisharena/internal/recorder"
)

func main() {
	database.ConnectDB()

	rdb := redis.NewClient(&redis.Options{
		Addr: config.GetEnv("REDIS_ADDR", "localhost:6379"),
	})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.Info("fisharena recorder starting")
	recorder.New(rdb, database.InsertGameRecord).Run(ctx)
}
