package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/config"
	"medflow-web/internal/handlers"
	"medflow-web/internal/middleware"
	"medflow-web/internal/models"
	"medflow-web/internal/session"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, sessions *session.Manager, api *apiclient.Client, cfg *config.Config, logger zerolog.Logger) {
	authHandler := handlers.NewAuthHandler(sessions, cfg)
	screenHandler := handlers.NewScreenHandler(api, cfg, logger)

	router.Use(middleware.SessionMiddleware(sessions, cfg))

	// Public routes
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, middleware.LoginPath)
	})
	router.GET("/login", authHandler.LoginScreen)
	router.POST("/login", authHandler.Login)
	router.POST("/logout", authHandler.Logout)

	// Any signed-in role
	router.GET("/dashboard", middleware.RouteGuard(), authHandler.Dashboard)
	router.GET("/admin", middleware.RouteGuard(), screenHandler.List(models.RoleAdmin))

	registrar := router.Group("/registrar", middleware.RouteGuard(models.RoleRegistrar))
	{
		registrar.GET("", screenHandler.List(models.RoleRegistrar))
		registrar.POST("/patients", screenHandler.Register)
	}
	router.GET("/registration", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/registrar")
	})

	nurse := router.Group("/nurse", middleware.RouteGuard(models.RoleNurse))
	{
		nurse.GET("", screenHandler.List(models.RoleNurse))
		nurse.POST("/patients/:id/assessment", screenHandler.Assessment)
	}

	doctor := router.Group("/doctor", middleware.RouteGuard(models.RoleDoctor))
	{
		doctor.GET("", screenHandler.List(models.RoleDoctor))
		doctor.POST("/patients/:id/consultation", screenHandler.Consultation)
	}

	pharmacist := router.Group("/pharmacist", middleware.RouteGuard(models.RolePharmacist))
	{
		pharmacist.GET("", screenHandler.List(models.RolePharmacist))
		pharmacist.POST("/patients/:id/dispense", screenHandler.Dispense)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
