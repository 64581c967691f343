package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"carelink/internal/config"
	"carelink/internal/domain/conversation"
	"carelink/internal/domain/message"
	"carelink/internal/domain/notification"
	"carelink/internal/domain/user"
	"carelink/internal/events"
	"carelink/internal/handler"
	"carelink/internal/middleware"
	"carelink/internal/presence"
	carelinkredis "carelink/internal/redis"
	"carelink/internal/registry"
	"carelink/internal/repository"
	"carelink/internal/services"
	"carelink/internal/websocket"
	"carelink/pkg/database"
	"carelink/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Server.Environment)
	defer log.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := db.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&message.Message{},
		&message.UserStatus{},
		&notification.Notification{},
		&notification.DeliveryLog{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Realtime plumbing
	hub := websocket.NewHub()
	go hub.Run(ctx)

	reg := registry.New(cfg.Realtime.HeartbeatTimeout)
	go reg.Run(ctx, cfg.Realtime.SweepInterval)

	var publisher events.Publisher
	var rateLimiter *carelinkredis.RateLimiter
	if cfg.Redis.Enabled {
		redisClient := events.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		publisher = events.NewRedisPublisher(redisClient)
		rateLimiter = carelinkredis.NewRateLimiter(redisClient, 30, time.Minute)

		bridge := websocket.NewRedisBridge(events.NewRedisSubscriber(redisClient), hub)
		go func() {
			patterns := []string{"channel:user:*", "channel:conversation:*"}
			if err := bridge.Run(ctx, patterns); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("redis bridge stopped: %v", err)
			}
		}()
	} else {
		rateLimiter = carelinkredis.NewRateLimiter(nil, 30, time.Minute)
	}

	// Services
	accessControl := services.NewAccessControl(conversationRepo, userRepo)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, userRepo)
	conversationService := services.NewConversationService(conversationRepo, accessControl, log)

	transport := websocket.NewHubTransport(hub, reg)
	dispatcher := services.NewNotificationDispatcher(
		notificationRepo,
		userRepo,
		reg,
		transport,
		services.NewLogMailer(log),
		publisher,
		log,
		cfg.Realtime.PushTimeout,
	)
	messageService := services.NewMessageService(messageRepo, conversationRepo, accessControl, dispatcher, log)
	telemetryService := services.NewTelemetryService(notificationRepo, reg)
	broadcaster := presence.NewBroadcaster(hub, reg, conversationRepo, publisher, log)

	// Handlers
	conversationHandler := handler.NewConversationHandler(conversationService, broadcaster)
	messageHandler := handler.NewMessageHandler(messageService)
	notificationHandler := handler.NewNotificationHandler(dispatcher)
	debugHandler := handler.NewDebugHandler(dispatcher, telemetryService)
	wsHandler := websocket.NewHandler(authService, hub, reg, broadcaster, conversationService, cfg.Realtime.HeartbeatTimeout, log)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", wsHandler.Connect)

	api := router.Group("/api")
	api.Use(middleware.ErrorHandler(log))
	api.Use(middleware.AuthMiddleware(authService))
	{
		conversations := api.Group("/conversations")
		{
			conversations.POST("", conversationHandler.Create)
			conversations.GET("", conversationHandler.List)
			conversations.GET("/:id", conversationHandler.Get)
			conversations.PATCH("/:id", conversationHandler.Update)
			conversations.DELETE("/:id", conversationHandler.Delete)
			conversations.POST("/:id/participants", conversationHandler.AddParticipant)
			conversations.DELETE("/:id/participants/:userId", conversationHandler.RemoveParticipant)
			conversations.POST("/:id/typing", conversationHandler.Typing)
			conversations.GET("/:id/presence", conversationHandler.Presence)
			conversations.GET("/:id/messages", messageHandler.List)
			conversations.POST("/:id/messages", middleware.MessageRateLimitMiddleware(rateLimiter), messageHandler.Create)
			conversations.POST("/:id/read-all", messageHandler.MarkAllRead)
			conversations.GET("/:id/unread", messageHandler.UnreadCount)
		}

		messages := api.Group("/messages")
		{
			messages.PATCH("/:id", messageHandler.Edit)
			messages.DELETE("/:id", messageHandler.Delete)
			messages.POST("/:id/read", messageHandler.MarkRead)
			messages.POST("/:id/reactions", messageHandler.AddReaction)
			messages.DELETE("/:id/reactions", messageHandler.RemoveReaction)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.Poll)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
		}

		debug := api.Group("/debug", middleware.RequireRole(user.RoleAdmin))
		{
			debug.POST("/notifications/test", debugHandler.TestSend)
			debug.GET("/metrics", debugHandler.Metrics)
			debug.DELETE("/delivery-logs", debugHandler.Cleanup)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Infof("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
