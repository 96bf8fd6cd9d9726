package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/auth"
	"github.com/huynd94/system-live-chat/internal/chat"
	"github.com/huynd94/system-live-chat/internal/config"
	"github.com/huynd94/system-live-chat/internal/delivery"
	"github.com/huynd94/system-live-chat/internal/infrastructure/kafka"
	mongostore "github.com/huynd94/system-live-chat/internal/infrastructure/mongo"
	"github.com/huynd94/system-live-chat/internal/infrastructure/redis"
	"github.com/huynd94/system-live-chat/internal/logger"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Application recovered from panic: %v", r)
			os.Exit(1)
		}
	}()

	_ = godotenv.Load()

	cfg := config.LoadConfig()

	var zapLogger *zap.Logger
	var err error
	if cfg.IsDevelopment() {
		zapLogger, err = logger.NewDevelopment()
	} else {
		zapLogger, err = logger.New(cfg.LogLevel)
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting live chat routing server",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := mongostore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	connectCancel()
	if err != nil {
		zapLogger.Fatal("failed to connect to mongo", zap.Error(err))
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		zapLogger.Warn("failed to ensure indexes", zap.Error(err))
	}

	redisClient := redis.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err := redisClient.Ping(ctx); err != nil {
		zapLogger.Warn("redis connection failed", zap.Error(err))
	}

	// Origin identifies this instance in mirrored events so the consumer
	// can skip its own traffic.
	origin := uuid.NewString()

	producer := kafka.NewProducer(cfg.KafkaBrokers, zapLogger.Named("kafka"))

	locks := chat.NewConversationLocks()
	presence := chat.NewPresence()
	rooms := chat.NewRooms(zapLogger.Named("rooms"))
	lifecycle := chat.NewLifecycle(store, store, rooms, presence, locks, producer, origin, zapLogger.Named("lifecycle"))
	relay := chat.NewRelay(store, store, rooms, locks, producer, origin, zapLogger.Named("relay"))

	authenticator := auth.NewAuthenticator(store, cfg.JWTSecret, time.Duration(cfg.JWTExpiryHr)*time.Hour)

	gateway := delivery.NewGateway(lifecycle, relay, rooms, presence, authenticator, redisClient, origin, zapLogger.Named("gateway"))

	// Each instance consumes every mirrored event with its own group, so
	// events accepted elsewhere reach room members connected here.
	topics := []string{kafka.TopicChatMessages, kafka.TopicTypingIndicators, kafka.TopicConnectionStatus}
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID+"-"+origin, topics, gateway, zapLogger.Named("kafka"))

	server := delivery.NewServer(cfg, gateway, lifecycle, store, redisClient, authenticator, zapLogger.Named("server"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		zapLogger.Info("shutting down")
		cancel()
		if err := consumer.Close(); err != nil {
			zapLogger.Warn("error closing kafka consumer", zap.Error(err))
		}
		if err := producer.Close(); err != nil {
			zapLogger.Warn("error closing kafka producer", zap.Error(err))
		}
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("error closing redis client", zap.Error(err))
		}
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			zapLogger.Warn("error closing mongo client", zap.Error(err))
		}
		os.Exit(0)
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				zapLogger.Error("kafka consumer goroutine recovered from panic", zap.Any("panic", r))
			}
		}()
		if err := consumer.Start(ctx); err != nil {
			zapLogger.Error("kafka consumer error", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		zapLogger.Fatal("server error", zap.Error(err))
	}
}
