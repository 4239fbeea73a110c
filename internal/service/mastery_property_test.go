// Property-based tests for the mastery reconciler.
package service

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"retro-league-bot/internal/model"
)

// TestMasterySnapshotMonotonicityProperty checks that for any sequence of
// remote completion states, the persisted snapshot never shrinks and never
// loses a recorded game ID across reconcile calls.
func TestMasterySnapshotMonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		source := newFakeSource()
		store := newFakeStore()
		svc := NewMasteryService(source, store, nil, nil)

		member := model.LeagueMember{TelegramID: 1, RAUsername: "player"}
		store.snapshots["player"] = []int64{}

		rounds := rapid.IntRange(1, 8).Draw(t, "rounds")
		recorded := make(map[int64]bool)

		for round := 0; round < rounds; round++ {
			// A fresh remote state each round: any set of games, any of
			// which may or may not be mastered.
			ids := rapid.SliceOfNDistinct(rapid.Int64Range(1, 50), 0, 10, rapid.ID[int64]).Draw(t, "ids")
			var stats []model.GameCompletion
			for _, id := range ids {
				stats = append(stats, model.GameCompletion{
					GameID:   id,
					PctWon:   rapid.SampledFrom([]float64{1.0, 0.5}).Draw(t, "pct"),
					Hardcore: rapid.Bool().Draw(t, "hardcore"),
				})
			}
			source.stats["player"] = stats

			before := len(store.snapshots["player"])

			delta, err := svc.CheckForNewMastery(ctx, member)
			if err != nil {
				t.Fatalf("reconcile failed: %v", err)
			}

			after := store.snapshots["player"]
			if len(after) < before {
				t.Fatalf("snapshot shrank from %d to %d entries", before, len(after))
			}
			if delta != nil && len(after) != before+1 {
				t.Fatalf("a delta must grow the snapshot by exactly one, got %d -> %d", before, len(after))
			}
			if delta == nil && len(after) != before {
				t.Fatalf("a nil delta must not change the snapshot, got %d -> %d", before, len(after))
			}

			for _, id := range after {
				recorded[id] = true
			}
			for id := range recorded {
				found := false
				for _, kept := range after {
					if kept == id {
						found = true
						break
					}
				}
				if !found {
					t.Fatalf("game %d disappeared from the snapshot", id)
				}
			}
		}
	})
}

// TestMasteryAtMostOnePerCallProperty checks that no matter how many games
// are newly mastered since the snapshot, a single call surfaces at most
// one delta, and repeated calls drain the backlog in source order.
func TestMasteryAtMostOnePerCallProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		source := newFakeSource()
		store := newFakeStore()
		svc := NewMasteryService(source, store, nil, nil)

		member := model.LeagueMember{TelegramID: 1, RAUsername: "player"}
		store.snapshots["player"] = []int64{}

		ids := rapid.SliceOfNDistinct(rapid.Int64Range(1, 1000), 1, 20, rapid.ID[int64]).Draw(t, "ids")
		var stats []model.GameCompletion
		for _, id := range ids {
			stats = append(stats, model.GameCompletion{GameID: id, PctWon: 1.0, Hardcore: true})
		}
		source.stats["player"] = stats

		var detected []int64
		for i := 0; i <= len(ids); i++ {
			delta, err := svc.CheckForNewMastery(ctx, member)
			if err != nil {
				t.Fatalf("reconcile failed: %v", err)
			}
			if delta == nil {
				break
			}
			detected = append(detected, delta.Game.GameID)
			if delta.TotalMasteryCount != len(detected) {
				t.Fatalf("total mastery count %d does not match drained count %d",
					delta.TotalMasteryCount, len(detected))
			}
		}

		if len(detected) != len(ids) {
			t.Fatalf("expected backlog of %d to drain one per call, drained %d", len(ids), len(detected))
		}
		for i, id := range ids {
			if detected[i] != id {
				t.Fatalf("drain order mismatch at %d: expected %d, got %d", i, id, detected[i])
			}
		}
	})
}
