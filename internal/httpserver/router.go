package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailroom/internal/handler"
	"mailroom/pkg/mq"
	"mailroom/pkg/rbac"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	grantHandler *handler.GrantHandler,
	labelHandler *handler.LabelHandler,
	emailHandler *handler.EmailHandler,
	syncHandler *handler.SyncHandler,
	jwtSecret string,
	logger *zap.Logger,
	db *pgxpool.Pool,
	consumer *mq.Consumer,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(LoggingMiddleware(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if consumer != nil && !consumer.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/login", authHandler.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/emails", RequirePermission(rbac.PermissionReadEmails), emailHandler.ListEmails)

		auth.GET("/grants/url", RequirePermission(rbac.PermissionManageGrants), grantHandler.AuthURL)
		auth.POST("/grants", RequirePermission(rbac.PermissionManageGrants), grantHandler.Grant)

		auth.GET("/labels/google", RequirePermission(rbac.PermissionManageLabels), labelHandler.ListProviderLabels)
		auth.GET("/labels", RequirePermission(rbac.PermissionManageLabels), labelHandler.GetMapping)
		auth.PUT("/labels", RequirePermission(rbac.PermissionManageLabels), labelHandler.SetMapping)
		auth.POST("/labels/auto", RequirePermission(rbac.PermissionManageLabels), labelHandler.AutoProvision)

		auth.POST("/sync", RequirePermission(rbac.PermissionTriggerSync), syncHandler.Trigger)

		auth.POST("/users", RequirePermission(rbac.PermissionManageUsers), authHandler.CreateUser)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
