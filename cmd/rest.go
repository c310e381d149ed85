package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AzielCF/az-relay/ui/rest"
	"github.com/AzielCF/az-relay/ui/rest/middleware"
	"github.com/AzielCF/az-relay/ui/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the dispatch API and provider webhooks over http",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		appConfig.App.BasicAuth = strings.Split(baFlag, ",")
	}

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		BodyLimit:               appConfig.App.BodyLimit,
		Network:                 "tcp",
		AppName:                 "Az-Relay",
		ServerHeader:            "Hidden",
	}

	if len(appConfig.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = appConfig.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())

	origins := strings.Join(appConfig.App.CorsAllowedOrigins, ", ")
	if !strings.Contains(origins, appConfig.App.BaseUrl) {
		origins += ", " + appConfig.App.BaseUrl
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-Token, X-Request-ID",
	}))
	app.Use(middleware.Recovery())

	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if appConfig.App.Debug {
		app.Use(logger.New())
	}

	if len(appConfig.App.BasicAuth) == 0 {
		logrus.Fatalln("APP_BASIC_AUTH is required. Nothing should be public; please set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>] and restart.")
	}

	account := make(map[string]string)
	for _, basicAuth := range appConfig.App.BasicAuth {
		ba := strings.SplitN(basicAuth, ":", 2)
		if len(ba) != 2 {
			logrus.Fatalln("Basic auth is not valid, please this following format <user>:<secret>")
		}
		account[ba[0]] = ba[1]
	}

	basePath := appConfig.App.BasePath

	// Uploaded media is public so providers can fetch it
	app.Static(basePath+"/statics", appConfig.Paths.Statics)

	// Provider callbacks authenticate with verify tokens and signatures, not basic auth
	public := app.Group(basePath)
	rest.InitRestWebhook(public, inboundUsecase, inboundPool, appConfig.Providers.Official.AppSecret)
	rest.InitRestHealth(public, healthChecks()...)

	apiGroup := app.Group(basePath + "/api")
	apiGroup.Use(basicauth.New(basicauth.Config{
		Users: account,
		Next: func(c *fiber.Ctx) bool {
			// Allow CORS preflight without credentials.
			return c.Method() == fiber.MethodOptions
		},
	}))
	apiGroup.Use(middleware.RejectRevoked(tokenBlacklist))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		StopApp()
	}()

	rest.InitRestBroadcast(apiGroup, broadcastUsecase)
	rest.InitRestChannel(apiGroup, channelOpsUsecase)
	rest.InitRestSession(apiGroup, tokenBlacklist, appConfig.Security.RevokedTokenTTL)
	rest.InitRestMedia(apiGroup, rest.Media{
		BaseURL:    appConfig.App.BaseUrl,
		BasePath:   basePath,
		StaticsDir: appConfig.Paths.Statics,
		MediaDir:   appConfig.Paths.Media,
		MaxBytes:   appConfig.Providers.Bridge.InlineMaxBytes,
	})
	rest.InitRestWorkerPool(apiGroup, inboundPool)
	rest.InitRestMonitoring(apiGroup, monitor)

	websocket.SetValkeyClient(vkClient, serverID)
	websocket.RegisterRoutes(apiGroup)
	go websocket.RunHub()

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	logrus.WithFields(logrus.Fields{"port": appConfig.App.Port, "server_id": serverID}).Info("[REST] Starting server")
	if err := app.Listen(":" + appConfig.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}

func healthChecks() []rest.HealthCheck {
	checks := []rest.HealthCheck{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if vkClient != nil {
		checks = append(checks, rest.HealthCheck{Name: "valkey", Check: vkClient.Ping})
	}
	return checks
}
