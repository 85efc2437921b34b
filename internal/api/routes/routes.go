// internal/api/routes/routes.go
package routes

import (
	"strings"

	"commande-track-api-server/config"
	"commande-track-api-server/internal/api/handlers"
	"commande-track-api-server/internal/api/middleware"
	"commande-track-api-server/internal/orders"
	"commande-track-api-server/internal/s3"
	"commande-track-api-server/internal/socket"
	"commande-track-api-server/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SetupRouter receives the constructed dependencies and wires the routes.
func SetupRouter(
	cfg config.Config,
	db *mongo.Database,
	orderService *orders.Service,
	orgStore *store.OrganisationStore,
	historyStore *store.HistoryStore,
	wsHub *socket.Hub,
	s3Uploader *s3.Uploader,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if cfg.Server.AllowOrigins != "" {
		corsCfg.AllowOrigins = strings.Split(cfg.Server.AllowOrigins, ",")
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	secret := []byte(cfg.JWT.Secret)

	orderHandler := &handlers.OrderHandler{Service: orderService, Store: orgStore, History: historyStore}
	clientHandler := &handlers.ClientHandler{Store: orgStore}
	userHandler := &handlers.UserHandler{DB: db, Cfg: cfg}
	publicHandler := &handlers.PublicHandler{Service: orderService, Store: orgStore}
	attachmentHandler := &handlers.AttachmentHandler{Service: orderService, Uploader: s3Uploader}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub, Store: orgStore, Secret: secret, Logger: logger}

	apiV1 := router.Group("/api/v1")
	{
		// WebSocket channels
		apiV1.GET("/ws", webSocketHandler.ServeWs)
		apiV1.GET("/ws/orders/:id", webSocketHandler.ServeOrderWs)

		// === ROUTES WITHOUT AUTHENTICATION ===

		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", userHandler.Login)
		}

		// Reduced-trust mobile quick-update surface, scoped by raw order id.
		public := apiV1.Group("/public")
		{
			public.GET("/orders/:id", publicHandler.GetOrder)
			public.PUT("/orders/:id/status", publicHandler.QuickStatusUpdate)
		}

		// === PROTECTED ROUTES ===

		business := apiV1.Group("/")
		business.Use(middleware.Authenticate(secret))
		business.Use(middleware.Authorize("admin", "manager", "worker"))
		{
			ordersGroup := business.Group("/orders")
			{
				ordersGroup.POST("/", orderHandler.CreateOrder)
				ordersGroup.GET("/", orderHandler.GetAllOrders)
				ordersGroup.GET("/:id", orderHandler.GetOrder)
				ordersGroup.PUT("/:id", orderHandler.UpdateOrder)
				ordersGroup.DELETE("/:id", orderHandler.DeleteOrder)
				ordersGroup.PUT("/:id/status", orderHandler.ChangeStatus)
				ordersGroup.PUT("/:id/steps/:stepID", orderHandler.UpdateStep)
				ordersGroup.GET("/:id/history", orderHandler.GetHistory)
				ordersGroup.POST("/:id/attachments", attachmentHandler.Upload)
			}

			clients := business.Group("/clients")
			{
				clients.POST("/", clientHandler.CreateClient)
				clients.GET("/", clientHandler.GetAllClients)
				clients.PUT("/:id", clientHandler.UpdateClient)
				clients.DELETE("/:id", clientHandler.DeleteClient)
			}
		}

		// Member management needs the admin role.
		admin := apiV1.Group("/users")
		admin.Use(middleware.Authenticate(secret))
		admin.Use(middleware.Authorize("admin"))
		{
			admin.POST("/", userHandler.CreateUser)
		}
	}

	return router
}
