package app

import (
	"academy_backend/docs"
	"academy_backend/internal/config"
	"academy_backend/internal/middleware"
	"academy_backend/internal/model"

	"academy_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, repos, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	router.GET("/health", c.health.HealthCheck)

	// 推广链接落地页，种 cookie 后跳转
	router.GET("/r/:code", c.affiliate.Redirect)

	api := router.Group("/api")
	{
		api.POST("/register", c.auth.Register)
		api.POST("/login", c.auth.Login)

		// 课程目录允许游客浏览
		api.GET("/courses", c.course.ListCourses)
		api.GET("/courses/:id", c.course.GetCourse)

		// 证书公开查验
		api.GET("/certificates/:code", c.certificate.LookupCertificate)

		// 支付网关回调，鉴权走签名而不是 JWT
		api.POST("/payments/webhook", c.payment.HandleWebhook)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/me", c.auth.Profile)

	// 支付
	rg.POST("/payments/checkout", c.payment.CreateCheckout)
	rg.POST("/payments/verify", c.payment.VerifyCheckout)
	rg.GET("/payments", c.payment.ListPayments)

	// 学习进度
	rg.GET("/courses/:id/progress", c.learning.GetProgress)
	rg.GET("/quizzes/:id", c.learning.GetQuiz)
	rg.POST("/quizzes/:id/submit", c.learning.SubmitQuiz)

	// 证书
	rg.POST("/courses/:id/certificate", c.certificate.ClaimCertificate)
	rg.GET("/certificates", c.certificate.ListCertificates)

	// 推广
	rg.POST("/affiliates/apply", c.affiliate.Apply)
	rg.GET("/affiliates/me", c.affiliate.Me)
	rg.GET("/affiliates/conversions", c.affiliate.Conversions)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/courses", c.course.CreateCourse)
		admin.POST("/courses/:id/modules", c.course.AddModule)
		admin.POST("/modules/:moduleId/quiz", c.course.AddQuiz)

		admin.GET("/affiliates", c.affiliate.ListAffiliates)
		admin.PUT("/affiliates/:id/status", c.admin.ReviewAffiliate)

		admin.POST("/users/:userId/courses/:courseId/reset", c.admin.ResetProgress)
		admin.POST("/users/:userId/courses/:courseId/certificate", c.admin.OverrideCertificate)
	}
}
