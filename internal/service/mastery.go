package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"retro-league-bot/internal/model"
	"retro-league-bot/internal/pkg/lock"
	"retro-league-bot/internal/repository"
)

// MasteryService reconciles a member's remote mastery state against the
// persisted snapshot and surfaces at most one newly detected mastery per
// call. Remaining backlog drains one mastery per account per tick, which
// keeps announcement order aligned with discovery order and throttles
// bursts.
type MasteryService struct {
	source   AchievementSource
	store    SnapshotStore
	roster   []model.LeagueMember
	accounts *lock.AccountLock
}

// NewMasteryService creates a new MasteryService instance.
func NewMasteryService(
	source AchievementSource,
	store SnapshotStore,
	roster []model.LeagueMember,
	accounts *lock.AccountLock,
) *MasteryService {
	if accounts == nil {
		accounts = lock.NewAccountLock()
	}
	return &MasteryService{
		source:   source,
		store:    store,
		roster:   roster,
		accounts: accounts,
	}
}

// CheckForNewMastery diffs the member's current mastered games against the
// snapshot. The first mastered game not yet in the snapshot, in source
// order, is recorded and returned; nil means nothing new. An account
// without a snapshot is bootstrapped instead: its current masteries are
// seeded silently so a first run never floods the chat.
//
// Crash safety: the detection is a pure function of remote state and the
// snapshot, so a failure before the snapshot write is retried identically
// on the next tick. A crash between the write and the announcement loses
// that one notification, which is accepted.
func (s *MasteryService) CheckForNewMastery(ctx context.Context, member model.LeagueMember) (*model.MasteryDelta, error) {
	if !s.accounts.TryLock(member.RAUsername) {
		return nil, lock.ErrAccountBusy
	}
	defer s.accounts.Unlock(member.RAUsername)

	username := member.RAUsername
	log.Debug().Str("username", username).Msg("Checking for new mastery")

	exists, err := s.store.Exists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot for %s: %w", username, err)
	}
	if !exists {
		if err := s.bootstrapAccount(ctx, username); err != nil {
			return nil, err
		}
		return nil, nil
	}

	known, err := s.store.Get(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrMalformedSnapshot) {
			return nil, fmt.Errorf("failed to read snapshot for %s: %w", username, err)
		}
		// A corrupt snapshot is treated as empty. This re-announces every
		// historical mastery for the account; accepted over blocking the
		// account until manual repair.
		log.Error().Str("username", username).Err(err).
			Msg("Snapshot is malformed, proceeding with empty set")
		known = nil
	}

	stats, err := s.source.UserCompletionStats(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completion stats for %s: %w", username, err)
	}

	knownSet := make(map[int64]struct{}, len(known))
	for _, id := range known {
		knownSet[id] = struct{}{}
	}

	for _, game := range stats {
		if !game.Mastered() {
			continue
		}
		if _, ok := knownSet[game.GameID]; ok {
			continue
		}

		log.Info().
			Str("username", username).
			Int64("game_id", game.GameID).
			Str("title", game.Title).
			Str("console", game.ConsoleName).
			Msg("Found a new mastery")

		known = append(known, game.GameID)
		if err := s.store.Set(ctx, username, known); err != nil {
			return nil, fmt.Errorf("failed to record mastery for %s: %w", username, err)
		}

		return &model.MasteryDelta{
			Game:              game,
			TotalMasteryCount: len(known),
		}, nil
	}

	return nil, nil
}

// BootstrapAccounts seeds a snapshot for every roster member that lacks
// one. Run once at startup before the first scheduled tick. Store failures
// abort the pass; upstream failures skip only the affected account, which
// is bootstrapped by its next reconciliation instead.
func (s *MasteryService) BootstrapAccounts(ctx context.Context) error {
	log.Info().Int("roster_size", len(s.roster)).Msg("Checking for new accounts")

	for _, member := range s.roster {
		exists, err := s.store.Exists(ctx, member.RAUsername)
		if err != nil {
			return fmt.Errorf("failed to check snapshot for %s: %w", member.RAUsername, err)
		}
		if exists {
			continue
		}

		log.Info().Str("username", member.RAUsername).Msg("Detected a new account")
		if err := s.bootstrapAccount(ctx, member.RAUsername); err != nil {
			if errors.Is(err, repository.ErrStoreUnavailable) {
				return err
			}
			log.Warn().Str("username", member.RAUsername).Err(err).
				Msg("Failed to bootstrap account, will retry on next tick")
		}
	}
	return nil
}

// MasteryCount returns the number of recorded masteries for a member.
func (s *MasteryService) MasteryCount(ctx context.Context, member model.LeagueMember) (int, error) {
	known, err := s.store.Get(ctx, member.RAUsername)
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot for %s: %w", member.RAUsername, err)
	}
	return len(known), nil
}

// bootstrapAccount seeds the account's snapshot with every game currently
// mastered, without emitting any notification.
func (s *MasteryService) bootstrapAccount(ctx context.Context, username string) error {
	log.Info().Str("username", username).Msg("Setting up new account")

	stats, err := s.source.UserCompletionStats(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to fetch completion stats for %s: %w", username, err)
	}

	ids := make([]int64, 0, len(stats))
	for _, game := range stats {
		if game.Mastered() {
			ids = append(ids, game.GameID)
		}
	}

	if err := s.store.Set(ctx, username, ids); err != nil {
		return fmt.Errorf("failed to seed snapshot for %s: %w", username, err)
	}

	log.Info().Str("username", username).Int("masteries", len(ids)).
		Msg("Stored initial masteries for account")
	return nil
}
