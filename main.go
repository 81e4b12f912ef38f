package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/config"
	"medflow-web/internal/logger"
	"medflow-web/internal/middleware"
	"medflow-web/internal/models"
	"medflow-web/internal/routes"
	"medflow-web/internal/session"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medflow",
		Short: "Clinic workflow front-end server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(routesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the front-end server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the served routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)
			api := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout, logger.Nop())
			router := newRouter(cfg, session.NewManager(session.NewMemoryStore(), api, logger.Nop()), api, logger.Nop())
			for _, r := range router.Routes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", r.Method, r.Path)
			}
			return nil
		},
	}
}

func runServer() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := newStore(cfg, log)
	if err != nil {
		return err
	}

	api := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout, log)
	sessions := session.NewManager(store, api, log)
	router := newRouter(cfg, sessions, api, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("api", cfg.API.BaseURL).Str("session_store", cfg.Session.Store).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func newStore(cfg *config.Config, log zerolog.Logger) (session.Store, error) {
	if cfg.Session.Store != config.SessionStoreMySQL {
		return session.NewMemoryStore(), nil
	}
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("connect session database: %w", err)
	}
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("connected to session database")
	return session.NewGormStore(db), nil
}

func newRouter(cfg *config.Config, sessions *session.Manager, api *apiclient.Client, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(log), middleware.Recovery(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Location"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, sessions, api, cfg, log)
	return router
}
