package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/redis/go-redis/v9"

	"github.com/loadxpress/loadxpress/internal/account"
)

// session value keys, mirrored by the JSON tags on account.Session
const (
	sessionKeyUser              = "user"
	sessionKeyPendingLogin      = "pendingLogin"
	sessionKeyPendingLoginEmail = "pendingLoginEmail"
)

const sessionKeyPrefix = "loadxpress:sessions:"

// RedisStorage adapts a redis client to fiber's session storage
// contract.
type RedisStorage struct {
	rdb *redis.Client
}

var _ fiber.Storage = (*RedisStorage)(nil)

// NewRedisStorage wraps an existing client; Close is a no-op so the
// client stays usable by the code store.
func NewRedisStorage(rdb *redis.Client) *RedisStorage {
	return &RedisStorage{rdb: rdb}
}

func (s *RedisStorage) Get(key string) ([]byte, error) {
	val, err := s.rdb.Get(context.Background(), sessionKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	return s.rdb.Set(context.Background(), sessionKeyPrefix+key, val, exp).Err()
}

func (s *RedisStorage) Delete(key string) error {
	return s.rdb.Del(context.Background(), sessionKeyPrefix+key).Err()
}

func (s *RedisStorage) Reset() error {
	var cursor uint64
	ctx := context.Background()
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStorage) Close() error {
	return nil
}

// loadSession materializes the state machine's session view from the
// cookie backed store.
func loadSession(fs *session.Session) *account.Session {
	out := &account.Session{}
	if v, ok := fs.Get(sessionKeyUser).(string); ok {
		out.UserID = v
	}
	if v, ok := fs.Get(sessionKeyPendingLogin).(bool); ok {
		out.PendingLogin = v
	}
	if v, ok := fs.Get(sessionKeyPendingLoginEmail).(string); ok {
		out.PendingLoginEmail = v
	}
	return out
}

// saveSession writes the session view back and persists it.
func saveSession(fs *session.Session, in *account.Session) error {
	if in.UserID == "" && !in.PendingLogin {
		// nothing to keep, drop the whole session
		return fs.Destroy()
	}

	fs.Set(sessionKeyUser, in.UserID)
	fs.Set(sessionKeyPendingLogin, in.PendingLogin)
	fs.Set(sessionKeyPendingLoginEmail, in.PendingLoginEmail)
	return fs.Save()
}
