package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/logbook/internal/models"
)

const (
	timeFormat    = "2006-01-02 15:04:05"
	sessionKeyTpl = "auth:session:%s" // auth:session:${sid}
)

// RedisSessions keeps each session as a hash that expires with the token.
type RedisSessions struct {
	redis *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{redis: client}
}

// DialRedisSessions connects to url and checks the connection.
func DialRedisSessions(ctx context.Context, url string) (*RedisSessions, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisSessions(client), nil
}

func (rs *RedisSessions) Create(ctx context.Context, identity models.Identity, ttl time.Duration) (*models.Session, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	key := fmt.Sprintf(sessionKeyTpl, id)

	pipe := rs.redis.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"uid":                   identity.UID,
		"email":                 identity.Email,
		"request_count":         1,
		"last_request_dttm_utc": now.Format(timeFormat),
		"created_dttm_utc":      now.Format(timeFormat),
		"expires_dttm_utc":      now.Add(ttl).Format(timeFormat),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		ID:              id,
		UID:             identity.UID,
		Email:           identity.Email,
		RequestCount:    1,
		LastRequestTime: now.Truncate(time.Second),
		CreatedTime:     now.Truncate(time.Second),
		ExpiresAt:       now.Add(ttl).Truncate(time.Second),
	}, nil
}

func (rs *RedisSessions) Touch(ctx context.Context, id string) (*models.Session, error) {
	key := fmt.Sprintf(sessionKeyTpl, id)

	exists, err := rs.redis.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	pipe := rs.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "request_count", 1)
	pipe.HSet(ctx, key, "last_request_dttm_utc", now.Format(timeFormat))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update session stats: %w", err)
	}

	values, err := rs.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session info: %w", err)
	}
	// expired between the check and the update
	if values["uid"] == "" {
		rs.redis.Del(ctx, key)
		return nil, nil
	}

	lastReqTime, _ := time.Parse(timeFormat, values["last_request_dttm_utc"])
	createdTime, _ := time.Parse(timeFormat, values["created_dttm_utc"])
	expiresAt, _ := time.Parse(timeFormat, values["expires_dttm_utc"])
	reqCount, _ := strconv.Atoi(values["request_count"])

	return &models.Session{
		ID:              id,
		UID:             values["uid"],
		Email:           values["email"],
		RequestCount:    reqCount,
		LastRequestTime: lastReqTime,
		CreatedTime:     createdTime,
		ExpiresAt:       expiresAt,
	}, nil
}

func (rs *RedisSessions) Revoke(ctx context.Context, id string) (bool, error) {
	n, err := rs.redis.Del(ctx, fmt.Sprintf(sessionKeyTpl, id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}
	return n > 0, nil
}

func (rs *RedisSessions) Close() error {
	if rs.redis != nil {
		return rs.redis.Close()
	}
	return nil
}
