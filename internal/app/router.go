package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/docs"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/config"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/middleware"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/monitoring"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/security"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/api/health", c.health.HealthCheck)

	users := router.Group("/api/users")

	// 1. session and password recovery, no login required
	a.registerPublicRoutes(users, c, cfg)

	// 2. any logged-in user
	authed := users.Group("")
	authed.Use(middleware.AuthMiddleware(a.Signer, a.sessions))
	{
		authed.GET("/profile", c.user.GetProfile)
		authed.PUT("/profile", c.user.UpdateProfile)
		authed.PUT("/change-password", c.user.ChangePassword)
		authed.POST("/request-password-change-otp", c.user.RequestPasswordChangeOTP)
		authed.POST("/verify-password-change-otp", c.user.VerifyPasswordChangeOTP)
		authed.PUT("/verify-otp-change-password", c.user.VerifyOTPAndChangePassword)
	}

	// 3. admin only
	a.registerAdminRoutes(users, c)
}

func (a *App) registerPublicRoutes(users *gin.RouterGroup, c *controllers, cfg *config.Config) {
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	credentialLimit := security.RateLimiter(cfg.RateLimit.AuthMaxRequests, window)
	tryAuth := middleware.TryAuthMiddleware(a.Signer, a.sessions)

	users.POST("", tryAuth, c.auth.Register)
	users.POST("/login", credentialLimit, c.auth.Login)
	users.POST("/refresh-token", c.auth.RefreshToken)
	users.POST("/logout", tryAuth, c.auth.Logout)

	users.POST("/forgot-password-otp", credentialLimit, c.auth.ForgotPasswordOTP)
	users.POST("/verify-forgot-password-otp", credentialLimit, c.auth.VerifyForgotPasswordOTP)
	users.PUT("/reset-password-with-otp", credentialLimit, c.auth.ResetPasswordWithOTP)
	users.POST("/forgot-password", credentialLimit, c.auth.ForgotPassword)
	users.POST("/reset-password/:token", credentialLimit, c.auth.ResetPassword)
}

func (a *App) registerAdminRoutes(users *gin.RouterGroup, c *controllers) {
	admin := users.Group("")
	admin.Use(middleware.AuthMiddleware(a.Signer, a.sessions), middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("", c.user.ListUsers)
		admin.GET("/stats", c.user.Stats)
		admin.GET("/preview-employee-id/:departmentId", c.user.PreviewEmployeeID)
		admin.POST("/teachers", c.user.CreateTeacher)
		admin.POST("/admins", c.user.CreateAdmin)
		admin.GET("/:id", c.user.GetUser)
		admin.PUT("/:id/status", c.user.SetStatus)
		admin.DELETE("/:id", c.user.DeleteUser)
	}
}
