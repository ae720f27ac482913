package main

import (
	"context"
	"net/http"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/nvbf/scoreboard-sync/pkg/auth"
	"github.com/nvbf/scoreboard-sync/pkg/config"
	resend "github.com/nvbf/scoreboard-sync/repos/resend"
	"github.com/nvbf/scoreboard-sync/services/admin"
	"github.com/nvbf/scoreboard-sync/services/relay"
	"github.com/nvbf/scoreboard-sync/services/stats"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid startup configuration")
	}

	ctx := context.Background()

	relayService := relay.NewRelay(ctx, logger)
	statsService := stats.NewStatsService(relayService)

	router := gin.Default()
	if origins := cfg.AllowedOrigins(); origins != nil {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Access-Control-Allow-Origin"}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	relay.NewHTTPHandler(relay.HTTPOptions{
		Relay:  relayService,
		Router: router.Group("/relay/v1"),
		Logger: logger,
	})

	stats.NewHTTPHandler(stats.HTTPOptions{
		Service: statsService,
		Router:  router.Group("/stats/v1"),
	})

	// The admin surface needs the managed datastore; without credentials
	// the server runs relay-only.
	if cfg.HasFirebase() {
		credentialsOption := option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON))

		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, credentialsOption)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create Firestore client")
		}
		defer firestoreClient.Close()

		firebaseApp, err := firebase.NewApp(ctx, nil, credentialsOption)
		if err != nil {
			logger.Fatal().Err(err).Msg("error initializing firebase app")
		}

		resendService := resend.NewService(firestoreClient, cfg.ResendKey, cfg.HostURL, logger)
		adminService := admin.NewAdminService(firestoreClient, firebaseApp, resendService, cfg.RelayPublicURL, logger)

		adminRouter := router.Group("/admin/v1")
		adminRouter.Use(auth.AuthMiddleware(firebaseApp))

		admin.NewHTTPHandler(admin.HTTPOptions{
			Service: adminService,
			Router:  adminRouter,
			Logger:  logger,
		})
	} else {
		logger.Info().Msg("no Firebase credentials, running relay-only")
	}

	logger.Fatal().Err(router.Run(":" + cfg.Port)).Msg("server stopped")
}
