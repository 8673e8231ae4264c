// handlers/match.go
package handlers

import (
	"ladder-match-system/middleware"
	"ladder-match-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(
	app *fiber.App,
	matchService *services.MatchService,
	rosterService *services.RosterService,
	mapBanService *services.MapBanService,
	resultService *services.ResultService,
	rewardService *services.RewardService,
) {
	// 🔓 Read routes — Gateway auth only, no user context needed
	app.Get("/matches", matchService.ListMatches)
	app.Get("/matches/:id", matchService.GetMatch)
	app.Get("/matches/:id/events", matchService.StreamMatchEvents)

	// 🔐 Secured routes — require user context from Gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/matches", matchService.CreateMatch)

	// Roster draft
	secured.Post("/matches/:id/roster/pick", rosterService.PickPlayer)

	// Map ban and selection
	secured.Post("/matches/:id/map-ban", mapBanService.BanMap)
	secured.Post("/matches/:id/map-vote", mapBanService.SubmitMapVote)

	// Ready handshake
	secured.Post("/matches/:id/acknowledge", matchService.Acknowledge)
	secured.Post("/matches/:id/game-code", matchService.SetGameCode)
	secured.Post("/matches/:id/cancel-vote", matchService.CastCancelVote)

	// Results and disputes
	secured.Post("/matches/:id/result", resultService.SubmitReport)
	secured.Post("/matches/:id/forfeit", resultService.Forfeit)
	secured.Post("/matches/:id/dispute", resultService.OpenDispute)
	secured.Post("/matches/:id/dispute/evidence", resultService.AddEvidence)

	// Chat
	secured.Post("/matches/:id/chat", matchService.PostChat)

	// Arbitration
	arbitration := secured.Group("/", middleware.RequireRole("arbitrator"))
	arbitration.Post("/matches/:id/dispute/resolve", resultService.ResolveDispute)
	arbitration.Get("/matches/:id/rewards/audit", rewardService.AuditDistribution)
}
