package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository keeps per-day component counters in postgres.
type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments the counter for day with a single upsert. Concurrent callers
// serialize on the row lock, so each one sees a distinct value.
func (r *SequenceRepository) Next(ctx context.Context, day string) (int64, error) {
	seq := entity.ComponentSequence{Day: day, Value: 1}
	err := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("component_sequences.value + 1")}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "value"}}},
	).Create(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("increment component sequence %s: %w", day, err)
	}
	if seq.Value == 0 {
		return 0, fmt.Errorf("increment component sequence %s: no value returned", day)
	}
	return seq.Value, nil
}

const (
	redisSequencePrefix = "railtrace:component_seq:"
	redisSequenceTTL    = 48 * time.Hour
)

// RedisSequencer keeps per-day component counters in redis with INCR.
type RedisSequencer struct {
	rdb *redis.Client
}

func NewRedisSequencer(rdb *redis.Client) *RedisSequencer {
	return &RedisSequencer{rdb: rdb}
}

func (s *RedisSequencer) Next(ctx context.Context, day string) (int64, error) {
	key := redisSequencePrefix + day
	value, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	// 当天第一次分配时设置过期
	if value == 1 {
		if err := s.rdb.Expire(ctx, key, redisSequenceTTL).Err(); err != nil {
			return 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return value, nil
}
