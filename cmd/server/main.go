// Command server runs the BenchVault API: a multi-tenant registry for RL
// benchmarks, artifacts and episodes backed by MongoDB.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/auth"
	"github.com/benchvault/benchvault/internal/config"
	"github.com/benchvault/benchvault/internal/db"
	"github.com/benchvault/benchvault/internal/handlers"
	"github.com/benchvault/benchvault/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Initialize("info", false)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)

	if cfg.JWTSecret == "" {
		logger.Log.Warn().Msg("JWT_SECRET_KEY not set; using an ephemeral development secret")
		cfg.JWTSecret = generateDevSecret()
	}

	// Connect to MongoDB and provision first-boot state.
	database, cleanup, err := db.Connect(context.Background(), db.Config{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDatabase,
		ConnectTimeout: cfg.MongoTimeout,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer cleanup()

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Bootstrap(bootCtx, database, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		bootCancel()
		logger.Log.Fatal().Err(err).Msg("Bootstrap failed")
	}
	bootCancel()

	// Wire the components: stores, token service, rights evaluator.
	userDB := db.NewUserDB(database)
	roleDB := db.NewRoleDB(database)
	groupDB := db.NewGroupDB(database)
	benchDB := db.NewBenchmarkDB(database)
	artifactDB := db.NewArtifactDB(database)
	episodeDB := db.NewEpisodeDB(database)

	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		SecretKey:  cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	evaluator := access.NewEvaluator(roleDB)

	accessHandler := handlers.NewAccessHandler(userDB, roleDB, groupDB, jwtManager, evaluator)
	benchHandler := handlers.NewBenchmarkHandler(benchDB, evaluator)
	artifactHandler := handlers.NewArtifactHandler(artifactDB, evaluator)
	episodeHandler := handlers.NewEpisodeHandler(episodeDB, benchDB, evaluator)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "benchvault", "status": "ok"})
	})

	public := router.Group("")
	accessHandler.RegisterPublicRoutes(public)

	protected := router.Group("")
	protected.Use(auth.Middleware(jwtManager, userDB))
	accessHandler.RegisterRoutes(protected)
	benchHandler.RegisterRoutes(protected)
	artifactHandler.RegisterRoutes(protected)
	episodeHandler.RegisterRoutes(protected)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Port).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Forced shutdown")
	}
}

// generateDevSecret produces a random signing key so a misconfigured
// deployment fails closed (tokens die with the process) instead of
// falling back to a guessable constant.
func generateDevSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to generate development secret")
	}
	return hex.EncodeToString(buf)
}

// requestLogger emits one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.HTTP().Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
