package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ibrahim-murtaza/ColorGrid/internal/entity"
)

// UserStatsRepository adjusts win/loss/draw counters and the fixed-wager
// coin transfer after every finished match. The loser's balance is floored
// at zero, never negative.
type UserStatsRepository interface {
	GetByID(ctx context.Context, id string) (*entity.UserStats, error)
	ApplyOutcome(ctx context.Context, winnerID, loserID string, draw bool) error
}

type dbUserStats struct {
	client *redis.Client
	wager  int
}

func NewUserStatsRepository(client *redis.Client, wager int) UserStatsRepository {
	return &dbUserStats{
		client: client,
		wager:  wager,
	}
}

// GetByID returns the stored counters for the user, or zero-valued
// counters when the user has no record yet.
func (that *dbUserStats) GetByID(ctx context.Context, id string) (*entity.UserStats, error) {
	userKey := "user:" + id

	response, err := that.client.Get(ctx, userKey).Result()

	if errors.Is(err, redis.Nil) {
		return &entity.UserStats{ID: id}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user stats by ID: %w", err)
	}

	var stats entity.UserStats
	if err = json.Unmarshal([]byte(response), &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user stats: %w", err)
	}

	return &stats, nil
}

func (that *dbUserStats) ApplyOutcome(ctx context.Context, winnerID, loserID string, draw bool) error {
	if draw {
		for _, id := range []string{winnerID, loserID} {
			if err := that.update(ctx, id, func(stats *entity.UserStats) {
				stats.Draws++
			}); err != nil {
				return fmt.Errorf("failed to record draw for user %s: %w", id, err)
			}
		}

		return nil
	}

	if err := that.update(ctx, winnerID, func(stats *entity.UserStats) {
		stats.Wins++
		stats.Coins += that.wager
	}); err != nil {
		return fmt.Errorf("failed to record win for user %s: %w", winnerID, err)
	}

	if err := that.update(ctx, loserID, func(stats *entity.UserStats) {
		stats.Losses++
		if stats.Coins >= that.wager {
			stats.Coins -= that.wager
		} else {
			stats.Coins = 0
		}
	}); err != nil {
		return fmt.Errorf("failed to record loss for user %s: %w", loserID, err)
	}

	return nil
}

func (that *dbUserStats) update(ctx context.Context, id string, apply func(*entity.UserStats)) error {
	stats, err := that.GetByID(ctx, id)
	if err != nil {
		return err
	}

	apply(stats)

	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal user stats: %w", err)
	}

	userKey := "user:" + id
	if err = that.client.Set(ctx, userKey, statsJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set user stats: %w", err)
	}

	return nil
}
