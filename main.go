package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ladder-match-system/handlers"
	"ladder-match-system/middleware"
	"ladder-match-system/models"
	"ladder-match-system/services"
	"ladder-match-system/utils"
	"ladder-match-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB, evidence screenshots and clips
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitEvidenceStore(); err != nil {
		log.Fatal("failed to initialize evidence store:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Match{},
		&models.LadderUser{},
		&models.Squad{},
		&models.GameMap{},
		&models.MatchConfirmation{},
		&models.ConnectivityTracking{},
		&models.RewardConfig{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	broadcaster := services.NewBroadcaster()
	configService := services.NewConfigService(db)
	mapService := services.NewMapService(db)
	rewardService := services.NewRewardService(db, configService)
	shadowBanService := services.NewShadowBanService(db, broadcaster)
	matchService := services.NewMatchService(db, broadcaster, rewardService, shadowBanService)
	rosterService := services.NewRosterService(db, broadcaster)
	mapBanService := services.NewMapBanService(db, broadcaster)
	resultService := services.NewResultService(db, broadcaster, matchService)
	confirmationService := services.NewConfirmationService(db, broadcaster)

	if err := mapService.EnsureDefaultMaps(); err != nil {
		log.Fatal("failed to seed map catalog:", err)
	}
	if _, err := configService.Get(); err != nil {
		log.Fatal("failed to seed reward config:", err)
	}

	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	matchServiceToken := os.Getenv("MATCH_SERVICE_TOKEN")
	if matchServiceToken == "" {
		log.Fatal("MATCH_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", matchServiceToken)
	syncWorker.Start(ctx)
	go workers.PollConnectivity(ctx, shadowBanService, 30*time.Second)

	scheduler := services.NewScheduler(
		matchService,
		rosterService,
		mapBanService,
		resultService,
		rewardService,
		confirmationService,
		shadowBanService,
	)
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer scheduler.Stop()

	handlers.SetupMatchRoutes(app, matchService, rosterService, mapBanService, resultService, rewardService)
	handlers.SetupConfirmationRoutes(app, confirmationService)
	handlers.SetupShadowBanRoutes(app, shadowBanService)
	handlers.SetupAdminRoutes(app, mapService, configService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ User Sync Worker running")
	log.Println("✅ Connectivity poller running (every 30s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
