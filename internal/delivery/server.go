package delivery

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/auth"
	"github.com/huynd94/system-live-chat/internal/chat"
	"github.com/huynd94/system-live-chat/internal/config"
	mongostore "github.com/huynd94/system-live-chat/internal/infrastructure/mongo"
	"github.com/huynd94/system-live-chat/internal/infrastructure/redis"
)

type Server struct {
	config        *config.Config
	gateway       *Gateway
	lifecycle     *chat.Lifecycle
	store         *mongostore.Store
	redis         *redis.RedisClient
	authenticator *auth.Authenticator
	logger        *zap.Logger
}

func NewServer(
	cfg *config.Config,
	gateway *Gateway,
	lifecycle *chat.Lifecycle,
	store *mongostore.Store,
	redisClient *redis.RedisClient,
	authenticator *auth.Authenticator,
	logger *zap.Logger,
) *Server {
	return &Server{
		config:        cfg,
		gateway:       gateway,
		lifecycle:     lifecycle,
		store:         store,
		redis:         redisClient,
		authenticator: authenticator,
		logger:        logger,
	}
}

func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "LiveChat Routing Server",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} ${latency}\n",
	}))

	corsConfig := cors.Config{
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With",
		AllowCredentials: s.config.AllowCredentials,
		MaxAge:           86400,
	}
	if s.config.IsProduction() {
		corsConfig.AllowOrigins = s.config.GetCORSOrigins()
	} else {
		corsConfig.AllowOrigins = "*"
		corsConfig.AllowCredentials = false
	}
	app.Use(cors.New(corsConfig))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"environment": s.config.Environment,
		})
	})

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", s.handleLogin)
	authGroup.Post("/logout", s.requireAgent, s.handleLogout)
	authGroup.Get("/me", s.requireAgent, s.handleMe)
	authGroup.Put("/profile", s.requireAgent, s.handleUpdateProfile)

	conversations := api.Group("/conversations", s.requireAgent)
	conversations.Get("/", s.handleListConversations)
	conversations.Get("/:conversation_id", s.handleGetConversation)
	conversations.Get("/:conversation_id/messages", s.handleListMessages)
	conversations.Get("/:conversation_id/connection-status", s.handleConnectionStatus)
	conversations.Post("/:conversation_id/assign", s.handleAssign)
	conversations.Post("/:conversation_id/close", s.handleClose)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/agent", websocket.New(s.gateway.HandleAgent))
	app.Get("/ws/customer", websocket.New(s.gateway.HandleCustomer))

	s.logger.Info("server starting", zap.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}
