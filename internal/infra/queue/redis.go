package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"billing_cycle_bot/internal/domain/reminder"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const defaultPrefix = "cycles:"

// ErrMalformedTask is returned by Pop for a payload that is not a task. The payload
// has already been moved to the dead-letter list.
var ErrMalformedTask = errors.New("malformed reminder task")

// NewRedisClient parses url, applies connection timeouts and checks the server answers.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisQueue is the reminder dispatcher backed by Redis. Tasks live in a list that
// the worker pops from the other end; scheduled evaluations live in a sorted set
// scored by unix time.
type RedisQueue struct {
	client       *redis.Client
	tasksKey     string
	deadKey      string
	scheduledKey string
	now          func() time.Time
}

func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisQueue{
		client:       client,
		tasksKey:     prefix + "reminders",
		deadKey:      prefix + "reminders:dead",
		scheduledKey: prefix + "reminders:scheduled",
		now:          time.Now,
	}
}

var _ reminder.Dispatcher = (*RedisQueue)(nil)

// Enqueue pushes t to the task list, assigning an ID when it has none.
func (q *RedisQueue) Enqueue(ctx context.Context, t *reminder.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = q.now().UTC()
	}
	return q.push(ctx, q.tasksKey, t)
}

func (q *RedisQueue) push(ctx context.Context, key string, t *reminder.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder task: %w", err)
	}
	if err := q.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("redis lpush failed: %w", err)
	}
	return nil
}

// Schedule records that the project's reminders should be evaluated again at at.
// Scheduling the same cycle again replaces the earlier time.
func (q *RedisQueue) Schedule(ctx context.Context, projectID, cycleID int64, at time.Time) error {
	member := scheduleMember(projectID, cycleID)
	err := q.client.ZAdd(ctx, q.scheduledKey, &redis.Z{Score: float64(at.Unix()), Member: member}).Err()
	if err != nil {
		return fmt.Errorf("redis zadd failed: %w", err)
	}
	return nil
}

// DueProjects claims every scheduled entry due at or before until and returns the
// distinct projects they belong to. An entry is claimed by whoever removes it, so
// concurrent callers never get the same entry.
func (q *RedisQueue) DueProjects(ctx context.Context, until time.Time) ([]int64, error) {
	members, err := q.client.ZRangeByScore(ctx, q.scheduledKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(until.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore failed: %w", err)
	}

	seen := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.scheduledKey, member).Result()
		if err != nil {
			return ids, fmt.Errorf("redis zrem failed: %w", err)
		}
		if removed == 0 {
			continue
		}
		projectID, err := parseScheduleMember(member)
		if err != nil || seen[projectID] {
			continue
		}
		seen[projectID] = true
		ids = append(ids, projectID)
	}
	return ids, nil
}

// Pop takes the oldest task. With a positive wait it blocks up to wait for one to
// arrive. It returns nil when the queue is empty.
func (q *RedisQueue) Pop(ctx context.Context, wait time.Duration) (*reminder.Task, error) {
	var (
		payload string
		err     error
	)
	if wait > 0 {
		var res []string
		res, err = q.client.BRPop(ctx, wait, q.tasksKey).Result()
		if err == nil {
			payload = res[1]
		}
	} else {
		payload, err = q.client.RPop(ctx, q.tasksKey).Result()
	}
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis pop failed: %w", err)
	}

	var t reminder.Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		if pushErr := q.client.LPush(ctx, q.deadKey, payload).Err(); pushErr != nil {
			return nil, fmt.Errorf("failed to dead-letter malformed task: %w", pushErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	return &t, nil
}

// Retry puts a failed task back at the end of the queue.
func (q *RedisQueue) Retry(ctx context.Context, t *reminder.Task) error {
	return q.push(ctx, q.tasksKey, t)
}

// DeadLetter parks a task that will not be retried.
func (q *RedisQueue) DeadLetter(ctx context.Context, t *reminder.Task) error {
	return q.push(ctx, q.deadKey, t)
}

// Len returns the number of tasks waiting for delivery.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.tasksKey).Result()
}

// DeadLen returns the number of dead-lettered tasks.
func (q *RedisQueue) DeadLen(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.deadKey).Result()
}

func scheduleMember(projectID, cycleID int64) string {
	return fmt.Sprintf("%d:%d", projectID, cycleID)
}

func parseScheduleMember(member string) (int64, error) {
	projectPart, _, ok := strings.Cut(member, ":")
	if !ok {
		return 0, fmt.Errorf("invalid schedule entry %q", member)
	}
	return strconv.ParseInt(projectPart, 10, 64)
}
