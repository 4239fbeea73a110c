package service

import (
	"context"
	"sync"
	"time"

	"retro-league-bot/internal/model"
	"retro-league-bot/internal/repository"
)

// fakeSource is an in-memory AchievementSource for tests. It tracks the
// maximum number of concurrent GameProgress calls so fan-out bounds can be
// asserted.
type fakeSource struct {
	mu sync.Mutex

	stats    map[string][]model.GameCompletion
	statsErr error

	details    map[int64]*model.GameDetails
	detailsErr error

	events    map[string][]model.DatedAchievement
	eventsErr error

	progress    map[int64]*model.GameProgress
	progressErr error

	statsCalls    int
	inFlight      int
	maxInFlight   int
	progressDelay time.Duration
	progressOrder []int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		stats:    make(map[string][]model.GameCompletion),
		details:  make(map[int64]*model.GameDetails),
		events:   make(map[string][]model.DatedAchievement),
		progress: make(map[int64]*model.GameProgress),
	}
}

func (f *fakeSource) UserCompletionStats(_ context.Context, username string) ([]model.GameCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats[username], nil
}

func (f *fakeSource) GameDetails(_ context.Context, gameID int64) (*model.GameDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details[gameID], nil
}

func (f *fakeSource) AchievementsEarnedBetween(_ context.Context, username string, _, _ time.Time) ([]model.DatedAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events[username], nil
}

func (f *fakeSource) GameProgress(_ context.Context, _ string, gameID int64) (*model.GameProgress, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.progressOrder = append(f.progressOrder, gameID)
	delay := f.progressDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	return f.progress[gameID], nil
}

// fakeStore is an in-memory SnapshotStore for tests.
type fakeStore struct {
	mu sync.Mutex

	snapshots map[string][]int64
	malformed map[string]bool

	getErr    error
	setErr    error
	existsErr error

	setCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[string][]int64),
		malformed: make(map[string]bool),
	}
}

func (f *fakeStore) Get(_ context.Context, username string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.malformed[username] {
		return nil, repository.ErrMalformedSnapshot
	}
	ids := f.snapshots[username]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out, nil
}

func (f *fakeStore) Set(_ context.Context, username string, gameIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	ids := make([]int64, len(gameIDs))
	copy(ids, gameIDs)
	f.snapshots[username] = ids
	delete(f.malformed, username)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.malformed[username] {
		return true, nil
	}
	_, ok := f.snapshots[username]
	return ok, nil
}
