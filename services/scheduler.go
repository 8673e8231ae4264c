// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler drives every deadline in the system: lapsed draft and ban turns,
// ready timeouts, report deadlines, confirmation expiry, due shadow-ban
// checks and stuck reward payouts.
type Scheduler struct {
	sched gocron.Scheduler

	Matches       *MatchService
	Roster        *RosterService
	MapBans       *MapBanService
	Results       *ResultService
	Rewards       *RewardService
	Confirmations *ConfirmationService
	ShadowBans    *ShadowBanService
}

func NewScheduler(
	matches *MatchService,
	roster *RosterService,
	mapBans *MapBanService,
	results *ResultService,
	rewards *RewardService,
	confirmations *ConfirmationService,
	shadowBans *ShadowBanService,
) *Scheduler {
	return &Scheduler{
		Matches:       matches,
		Roster:        roster,
		MapBans:       mapBans,
		Results:       results,
		Rewards:       rewards,
		Confirmations: confirmations,
		ShadowBans:    shadowBans,
	}
}

// Start registers and launches all sweep jobs.
func (s *Scheduler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.sched = sched

	jobs := []struct {
		name     string
		interval time.Duration
		run      func()
	}{
		{"roster turn deadlines", 15 * time.Second, s.Roster.SweepTurnDeadlines},
		{"map ban deadlines", 15 * time.Second, s.MapBans.SweepTurnDeadlines},
		{"ready timeouts", 30 * time.Second, s.Matches.SweepReadyTimeouts},
		{"report deadlines", 1 * time.Minute, s.Results.SweepReportDeadlines},
		{"confirmation expiry", 10 * time.Second, s.Confirmations.SweepExpired},
		{"due shadow-ban checks", 30 * time.Second, s.ShadowBans.ProcessDue},
		{"expired account bans", 5 * time.Minute, s.ShadowBans.SweepExpiredBans},
		{"stuck reward payouts", 2 * time.Minute, s.Rewards.SweepStuckDistributions},
	}
	for _, job := range jobs {
		if _, err := sched.NewJob(gocron.DurationJob(job.interval), gocron.NewTask(job.run)); err != nil {
			return err
		}
		log.Printf("[Scheduler] registered %s every %s", job.name, job.interval)
	}

	sched.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}
