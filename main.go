package main

import (
	"context"
	"log"
	"os"
	"time"

	"leadflow/config"
	controller "leadflow/controllers"
	"leadflow/engine"
	"leadflow/middleware"
	"leadflow/routes"
	"leadflow/utils"
	"leadflow/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "LEADFLOW: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	engineLog := logrus.WithField("component", "engine")

	// Capability implementations
	mailer := utils.NewMailer(config.DB, logrus.WithField("component", "mailer"))
	whatsapp := utils.NewWhatsAppClient(config.AppConfig.WhatsApp, logrus.WithField("component", "whatsapp"))
	personalizer := utils.NewPersonalizer(config.AppConfig.AI, logrus.WithField("component", "personalizer"))
	cache := utils.NewActivityCache(
		config.AppConfig.Redis,
		time.Duration(config.AppConfig.QueueCacheTTL)*time.Second,
		logrus.WithField("component", "cache"),
	)

	// WebSocket hub for queue refresh events
	hub := controller.NewActivityHub(log.New(os.Stdout, "WS: ", log.LstdFlags))

	// Scheduling engine
	eng := engine.NewEngine(config.DB, engine.SystemClock{}, mailer, whatsapp, cache, hub, engineLog)

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Initialize and start the auto cadence worker
	autoWorker := worker.NewAutoCadenceWorker(
		config.DB,
		eng,
		personalizer,
		logrus.WithField("component", "auto_worker"),
		time.Duration(config.AppConfig.WorkerInterval)*time.Second,
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go autoWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, eng, cache, hub)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
