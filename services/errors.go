package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Protocol errors returned synchronously to the caller for user-facing
// correction. Each maps to a stable reason code so the calling layer can
// explain why, not just that, a request was rejected.
var (
	ErrInvalidTransition = errors.New("operation not allowed in current match state")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrNotReferent       = errors.New("only the referent can perform this action")
	ErrMapAlreadyBanned  = errors.New("map already banned")
	ErrMapNotInPool      = errors.New("map not in the match pool")
	ErrAlreadyBanned     = errors.New("you already banned a map")
	ErrAlreadyPicked     = errors.New("player already picked")
	ErrNotSquadMember    = errors.New("player is not a member of your squad")
	ErrPlayerBanned      = errors.New("player is banned")
	ErrPlayerOffline     = errors.New("player is missing the live-connection signal")
	ErrAlreadyVoted      = errors.New("you already voted")
	ErrAlreadyReported   = errors.New("you already reported a result")
	ErrExpired           = errors.New("deadline has passed")
	ErrVoteCast          = errors.New("cancellation vote already cast")

	// Conflict marks a correctly rejected race (duplicate terminal
	// transition, concurrent guarded write). Logged, not a user error.
	ErrConflict = errors.New("conflicting concurrent update")

	// Integrity violations are defects to alert on, never retried.
	ErrRewardsAlreadyDistributed = errors.New("rewards already distributed for this match")
	ErrTrackingExists            = errors.New("tracking already exists for this match and player")
)

var errorCodes = map[error]struct {
	code   string
	status int
}{
	ErrInvalidTransition:         {"invalid_transition", fiber.StatusConflict},
	ErrNotYourTurn:               {"out_of_turn", fiber.StatusBadRequest},
	ErrNotReferent:               {"not_referent", fiber.StatusForbidden},
	ErrMapAlreadyBanned:          {"map_already_banned", fiber.StatusBadRequest},
	ErrMapNotInPool:              {"map_not_in_pool", fiber.StatusBadRequest},
	ErrAlreadyBanned:             {"already_banned", fiber.StatusBadRequest},
	ErrAlreadyPicked:             {"already_picked", fiber.StatusBadRequest},
	ErrNotSquadMember:            {"not_squad_member", fiber.StatusBadRequest},
	ErrPlayerBanned:              {"player_banned", fiber.StatusBadRequest},
	ErrPlayerOffline:             {"player_offline", fiber.StatusBadRequest},
	ErrAlreadyVoted:              {"already_voted", fiber.StatusBadRequest},
	ErrAlreadyReported:           {"already_reported", fiber.StatusBadRequest},
	ErrExpired:                   {"expired", fiber.StatusGone},
	ErrVoteCast:                  {"vote_already_cast", fiber.StatusBadRequest},
	ErrConflict:                  {"conflict", fiber.StatusConflict},
	ErrRewardsAlreadyDistributed: {"integrity_violation", fiber.StatusConflict},
	ErrTrackingExists:            {"integrity_violation", fiber.StatusConflict},
}

// RejectJSON writes a protocol error as a reason-coded JSON response.
// Unknown errors become a plain 500.
func RejectJSON(c *fiber.Ctx, err error) error {
	for sentinel, meta := range errorCodes {
		if errors.Is(err, sentinel) {
			return c.Status(meta.status).JSON(fiber.Map{
				"error": sentinel.Error(),
				"code":  meta.code,
			})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "server error"})
}
