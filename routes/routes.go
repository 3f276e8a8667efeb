package routes

import (
	"log"
	"os"

	controller "leadflow/controllers"
	"leadflow/engine"
	"leadflow/middleware"
	"leadflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

// SetupRoutes wires the HTTP surface: the activity engine endpoints plus the
// read-side cadence and lead endpoints.
func SetupRoutes(app *fiber.App, db *gorm.DB, eng *engine.Engine, cache *utils.ActivityCache, hub *controller.ActivityHub) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	activityController := controller.NewActivityController(eng, cache, log.New(os.Stdout, "ACTIVITY: ", log.LstdFlags))
	cadenceController := controller.NewCadenceController(db, log.New(os.Stdout, "CADENCE: ", log.LstdFlags))
	leadController := controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags))

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Activity queue routes
	activities := api.Group("/activities")
	activities.Get("/", activityController.GetPendingActivities)
	activities.Get("/log", activityController.GetActivityLog)
	activities.Post("/execute", activityController.ExecuteActivity)
	activities.Post("/:id/skip", activityController.SkipActivity)

	// WebSocket route for queue refresh events
	activities.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	activities.Get("/ws", websocket.New(controller.HandleActivityWS(hub)))

	// Cadence routes
	cadences := api.Group("/cadences")
	cadences.Get("/", cadenceController.GetCadences)
	cadences.Get("/:id", cadenceController.GetCadence)

	// Lead routes
	leads := api.Group("/leads")
	leads.Get("/", leadController.GetLeads)
	leads.Get("/:id", leadController.GetLead)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	log.Println("API routes initialized successfully")
}
