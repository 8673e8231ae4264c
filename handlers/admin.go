// handlers/admin.go
package handlers

import (
	"ladder-match-system/middleware"
	"ladder-match-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, mapService *services.MapService, configService *services.ConfigService) {
	// Map catalog reads are public (Gateway auth only)
	app.Get("/maps", mapService.ListMaps)

	admin := app.Group("/admin",
		middleware.UserContextMiddleware(),
		middleware.RequireRole("authority"),
	)

	admin.Post("/maps", mapService.CreateMap)
	admin.Put("/maps/:id", mapService.UpdateMap)

	admin.Get("/config", configService.GetConfig)
	admin.Put("/config", configService.UpdateConfig)
}
