package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/delivery"
	"messaging-service/internal/files"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	cfg := config.Load()

	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background(), serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up tracing")
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to db")
	}
	defer database.Close()

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	logrus.WithFields(logrus.Fields{
		"mode":   rabbitmq.PublisherMode(auditPublisher),
		"reason": rabbitmq.PublisherNoopReason(auditPublisher),
	}).Info("audit publisher ready")
	audit := telemetry.NewAuditEmitter(auditPublisher, "messaging.audit", serviceName, cfg.Environment)

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err == nil {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	} else {
		logrus.WithError(err).Info("domain event publishing disabled")
	}

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	messageRepo := repositories.NewMessageRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub()

	// Presence transitions fan out to every live session and are mirrored to
	// the durable flag. A single ordered worker applies them off the registry
	// lock so a rapid connect and disconnect can never broadcast out of order.
	presenceSink, stopPresence := presence.OrderedTransitions(256, func(userID int, online bool) {
		status := "offline"
		if online {
			status = "online"
		}
		hub.Broadcast(models.ServerEvent{Type: models.EventUserStatus, UserID: userID, Status: status})
		if err := userRepo.SetOnline(context.Background(), userID, online); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("mirror presence flag")
		}
	})
	defer stopPresence()
	registry := presence.NewRegistry(presenceSink)

	pipeline := delivery.NewPipeline(verifier, messageRepo, groupMessageRepo, groupRepo, conversationRepo, hub, audit)
	gateway := ws.NewGateway(verifier, hub, registry, pipeline, groupRepo, conversationRepo, audit, cfg.PingInterval, cfg.PongWait)

	fileStore := files.NewLocalStore(cfg.UploadDir, files.Limits{
		Image: cfg.MaxImageBytes,
		Video: cfg.MaxVideoBytes,
		File:  cfg.MaxFileBytes,
	})

	conversationHandler := handlers.NewConversationHandler(messageRepo, conversationRepo, userRepo)
	groupHandler := handlers.NewGroupHandler(groupRepo, groupMessageRepo, userRepo, hub, audit)
	adminHandler := handlers.NewAdminHandler(messageRepo, groupMessageRepo, userRepo, registry)
	fileHandler := handlers.NewFileHandler(fileStore)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)
	adminOnly := middleware.AdminOnly(userRepo)

	api := router.Group("/api", authMiddleware)
	{
		api.GET("/conversations", conversationHandler.ListConversations)
		api.GET("/messages/:peer_id", conversationHandler.GetMessages)
		api.GET("/messages/:peer_id/search", conversationHandler.SearchMessages)
		api.DELETE("/conversations/:peer_id", conversationHandler.HideThread)
		api.DELETE("/messages/:message_id/me", conversationHandler.DeleteMessageForMe)

		api.POST("/groups", groupHandler.CreateGroup)
		api.GET("/groups", groupHandler.ListGroups)
		api.GET("/groups/:group_id/messages", groupHandler.GetGroupMessages)
		api.GET("/groups/:group_id/search", groupHandler.SearchGroupMessages)
		api.POST("/groups/:group_id/read", groupHandler.MarkGroupRead)
		api.POST("/groups/:group_id/leave", groupHandler.LeaveGroup)
		api.DELETE("/groups/:group_id", groupHandler.DeleteGroup)

		api.POST("/upload", fileHandler.Upload)
		api.GET("/files/*path", fileHandler.Serve)

		admin := api.Group("/admin", adminOnly)
		admin.GET("/messages", adminHandler.RecentMessages)
		admin.GET("/group-messages", adminHandler.RecentGroupMessages)
		admin.GET("/stats", adminHandler.Stats)
	}

	router.GET("/ws", gateway.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, registry, cfg.DebugRoutes)

	logrus.WithFields(logrus.Fields{
		"port":        cfg.HTTPPort,
		"environment": cfg.Environment,
	}).Info("messaging service listening")
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
}
