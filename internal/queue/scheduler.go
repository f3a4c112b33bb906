// Package queue is the Redis-backed delay queue between the submission
// handler and the deferred runner. Enqueue writes the serialized job into a
// sorted set scored by its ready time; the poller claims due members. A
// member is owned by whichever poller removes it, so each due job is
// delivered at most once per claim.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bloomreach-forms/internal/common/database"
	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/submission"

	"github.com/redis/go-redis/v9"
)

type RedisScheduler struct {
	redis  *database.RedisClient
	key    string
	logger logger.Logger
}

func NewRedisScheduler(rdb *database.RedisClient, key string, log logger.Logger) *RedisScheduler {
	return &RedisScheduler{redis: rdb, key: key, logger: log}
}

// Enqueue schedules a job for delivery no earlier than now+delay.
func (s *RedisScheduler) Enqueue(ctx context.Context, job *submission.Job, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	readyAt := time.Now().Add(delay).Unix()
	if err := s.redis.GetClient().ZAdd(ctx, s.key, redis.Z{
		Score:  float64(readyAt),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// PopDue claims up to limit jobs whose ready time has passed. Members that
// another poller removed first are skipped; members that fail to decode are
// dropped after claiming so they can't wedge the queue.
func (s *RedisScheduler) PopDue(ctx context.Context, now time.Time, limit int64) ([]*submission.Job, error) {
	members, err := s.redis.GetClient().ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due jobs: %w", err)
	}

	var jobs []*submission.Job
	for _, member := range members {
		removed, err := s.redis.GetClient().ZRem(ctx, s.key, member).Result()
		if err != nil {
			return jobs, fmt.Errorf("failed to claim job: %w", err)
		}
		if removed == 0 {
			continue
		}
		var job submission.Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			s.logger.Error("Dropping undecodable job payload", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
