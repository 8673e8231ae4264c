// handlers/shadowban.go
package handlers

import (
	"ladder-match-system/middleware"
	"ladder-match-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupShadowBanRoutes(app *fiber.App, shadowBanService *services.ShadowBanService) {
	// Review surface is restricted to the authority role end to end.
	authority := app.Group("/shadow-bans",
		middleware.UserContextMiddleware(),
		middleware.RequireRole("authority"),
	)

	authority.Get("/", shadowBanService.ListTrackings)
	authority.Post("/:id/clear", shadowBanService.ManualClear)
}
