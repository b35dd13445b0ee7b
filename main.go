package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connect-chain-system/handlers"
	"connect-chain-system/middleware"
	"connect-chain-system/models"
	"connect-chain-system/services"
	"connect-chain-system/utils"
	"connect-chain-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024, // evidence uploads
	})

	// Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("ALLOWED_ORIGINS not set, using default: http://localhost:3000")
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// TranslateError turns unique-constraint violations into
	// gorm.ErrDuplicatedKey, which the chain join race handling depends on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ConnectRequest{},
		&models.Chain{},
		&models.Participant{},
		&models.CreditTransaction{},
		&models.CreditAccount{},
		&models.TargetClaim{},
		&models.Notification{},
		&models.ConnectUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if utils.ObjectStoreConfigured() {
		if err := utils.InitObjectStore(); err != nil {
			log.Fatal("failed to initialize object store:", err)
		}
	} else {
		log.Println("Object store not configured — claim evidence uploads disabled")
	}

	notificationService := services.NewNotificationService(db)
	ledgerService := services.NewLedgerService(db)
	requestService := services.NewRequestService(db, ledgerService, notificationService)
	chainService := services.NewChainService(db, notificationService)
	claimService := services.NewClaimService(db, ledgerService, notificationService)
	userService := services.NewUserService(db)

	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("CHAIN_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("CHAIN_SERVICE_TOKEN environment variable not set")
	}
	identityClient := services.NewIdentityClient(authServiceURL, serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL != "" {
		syncWorker := workers.NewUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
		syncWorker.Start(ctx)
	} else {
		log.Println("SYNC_SERVICE_URL not set — user mirror sync disabled")
	}

	go workers.PollLedgerAudit(ctx, workers.NewLedgerAuditor(db), 5*time.Minute)

	requestService.StartExpirySweep()

	handlers.SetupRequestRoutes(app, requestService)
	handlers.SetupChainRoutes(app, chainService, userService)
	handlers.SetupCreditRoutes(app, ledgerService)
	handlers.SetupClaimRoutes(app, claimService)
	handlers.SetupNotificationRoutes(app, notificationService, identityClient)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("Server running on http://localhost:5300")
	log.Println("Expiry sweep running (every 1m), ledger audit running (every 5m)")
	log.Printf("CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
