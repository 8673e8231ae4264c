// handlers/confirmation.go
package handlers

import (
	"ladder-match-system/middleware"
	"ladder-match-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupConfirmationRoutes(app *fiber.App, confirmationService *services.ConfirmationService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/confirmations", confirmationService.CreateConfirmation)
	secured.Get("/confirmations/pending", confirmationService.GetPending)
	secured.Post("/confirmations/:id/respond", confirmationService.Respond)
}
