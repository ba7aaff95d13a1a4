package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Mehfooz5/launchpad-messaging/internal/cache"
	"github.com/Mehfooz5/launchpad-messaging/internal/config"
	"github.com/Mehfooz5/launchpad-messaging/internal/events"
	"github.com/Mehfooz5/launchpad-messaging/internal/handlers"
	"github.com/Mehfooz5/launchpad-messaging/internal/logger"
	"github.com/Mehfooz5/launchpad-messaging/internal/middleware"
	"github.com/Mehfooz5/launchpad-messaging/internal/repository"
	"github.com/Mehfooz5/launchpad-messaging/internal/server"
	"github.com/Mehfooz5/launchpad-messaging/internal/service"
	"github.com/Mehfooz5/launchpad-messaging/internal/ws"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mongo
	mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		lg.Fatalw("mongo connect", "error", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	db := mc.Database(cfg.Mongo.Database)
	convRepo, err := repository.NewMongoConversationRepository(ctx, db.Collection(cfg.Mongo.ConversationsCollection))
	if err != nil {
		lg.Fatalw("conversation repo init", "error", err)
	}
	msgRepo, err := repository.NewMongoMessageRepository(ctx, db.Collection(cfg.Mongo.MessagesCollection))
	if err != nil {
		lg.Fatalw("message repo init", "error", err)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		lg.Warnw("redis ping", "error", err)
	}
	cancel()
	presence := cache.NewPresenceStore(rdb, cfg.Redis.Prefix)
	limiter := middleware.NewRateLimiter(rdb, cfg.Redis.Prefix+":rl", cfg.RateLimit.Limit, cfg.RateLimitWindow)

	// Kafka (optional: no brokers configured means events are dropped)
	pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageCreated, cfg.Kafka.TopicConversationCreated)
	defer pub.Close()

	svc := service.NewChatService(convRepo, msgRepo, pub, lg)

	hub := ws.NewHub(lg)
	go hub.Run(ctx)

	wsh := ws.NewHandler(hub, svc, presence, lg, ws.Options{
		PingInterval:    cfg.PingInterval,
		WriteTimeout:    cfg.WriteTimeout,
		PongTimeout:     cfg.PongTimeout,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		SendBufferSize:  cfg.WS.SendBufferSize,
		PresenceTTL:     cfg.PresenceTTL,
	})

	h := handlers.NewChatHandler(svc, presence, lg)
	app := server.New(cfg, h, wsh, limiter)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		lg.Infow("messaging service listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			lg.Fatalw("server listen", "error", err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
}
