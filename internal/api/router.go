package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/api/handler"
	"github.com/qs3c/scribe_server/internal/api/middleware"
)

type Router struct {
	authHandler    *handler.AuthHandler
	userHandler    *handler.UserHandler
	postHandler    *handler.PostHandler
	billingHandler *handler.BillingHandler
	cfg            *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	postHandler *handler.PostHandler,
	billingHandler *handler.BillingHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:    authHandler,
		userHandler:    userHandler,
		postHandler:    postHandler,
		billingHandler: billingHandler,
		cfg:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.GET("/twitter", r.authHandler.TwitterAuth)
			auth.GET("/twitter/callback", r.authHandler.TwitterCallback)
		}

		// Stripe 回调，使用签名校验而不是登录态
		api.POST("/billing/webhook", r.billingHandler.Webhook)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.POST("/auth/logout", r.authHandler.Logout)

			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.GET("/quota", r.userHandler.GetQuota)
			}

			// 发帖
			authenticated.POST("/posts", r.postHandler.Create)

			// 订阅
			billing := authenticated.Group("/billing")
			{
				billing.POST("/checkout", r.billingHandler.Checkout)
				billing.POST("/portal", r.billingHandler.Portal)
			}
		}
	}

	return engine
}
