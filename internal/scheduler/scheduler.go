// Package scheduler owns the periodic mastery check: every interval it
// walks the roster, reconciles each account, and forwards any detected
// mastery to the notifier.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"retro-league-bot/internal/model"
	"retro-league-bot/internal/pkg/metrics"
	"retro-league-bot/internal/repository"
)

// Reconciler detects at most one new mastery per account per call.
type Reconciler interface {
	CheckForNewMastery(ctx context.Context, member model.LeagueMember) (*model.MasteryDelta, error)
}

// RarityResolver resolves the rarest achievement of a game.
type RarityResolver interface {
	ResolveRarest(ctx context.Context, gameID int64) (*model.RarestPick, error)
}

// Notifier delivers a formatted mastery announcement.
type Notifier interface {
	AnnounceMastery(member model.LeagueMember, delta *model.MasteryDelta, pick *model.RarestPick) error
}

// Scheduler runs the periodic roster reconciliation.
type Scheduler struct {
	interval   time.Duration
	roster     []model.LeagueMember
	reconciler Reconciler
	rarity     RarityResolver
	notifier   Notifier
}

// New creates a Scheduler.
func New(
	interval time.Duration,
	roster []model.LeagueMember,
	reconciler Reconciler,
	rarity RarityResolver,
	notifier Notifier,
) *Scheduler {
	return &Scheduler{
		interval:   interval,
		roster:     roster,
		reconciler: reconciler,
		rarity:     rarity,
		notifier:   notifier,
	}
}

// Run ticks at the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().
		Dur("interval", s.interval).
		Int("roster_size", len(s.roster)).
		Msg("Mastery check scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Mastery check scheduler stopped")
			return
		case <-ticker.C:
			s.RunTick(ctx)
		}
	}
}

// RunTick reconciles every roster member once, sequentially. A failing
// account is logged and skipped; it never blocks the rest of the roster.
// There is no retry within a tick - the next tick is the retry.
func (s *Scheduler) RunTick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	for _, member := range s.roster {
		if ctx.Err() != nil {
			return
		}
		s.checkMember(ctx, member)
	}
}

// checkMember runs one account's reconcile-resolve-announce pipeline.
func (s *Scheduler) checkMember(ctx context.Context, member model.LeagueMember) {
	metrics.MasteryChecks.Inc()

	delta, err := s.reconciler.CheckForNewMastery(ctx, member)
	if err != nil {
		if errors.Is(err, repository.ErrStoreUnavailable) {
			metrics.StoreErrors.Inc()
		} else {
			metrics.UpstreamErrors.Inc()
		}
		log.Warn().
			Str("username", member.RAUsername).
			Err(err).
			Msg("Mastery check failed, will retry on next tick")
		return
	}
	if delta == nil {
		return
	}

	metrics.MasteriesDetected.Inc()

	// Rarity resolution failure degrades the announcement instead of
	// dropping it: the mastery is already recorded in the snapshot.
	pick, err := s.rarity.ResolveRarest(ctx, delta.Game.GameID)
	if err != nil {
		log.Warn().
			Str("username", member.RAUsername).
			Int64("game_id", delta.Game.GameID).
			Err(err).
			Msg("Failed to resolve rarest achievement, announcing without it")
		pick = nil
	}

	if err := s.notifier.AnnounceMastery(member, delta, pick); err != nil {
		log.Error().
			Str("username", member.RAUsername).
			Int64("game_id", delta.Game.GameID).
			Err(err).
			Msg("Failed to send mastery announcement")
	}
}
