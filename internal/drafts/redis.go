package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainform"
)

type redisStore struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(ctx context.Context, log *logger.Logger, opts Options) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(opts.KeyPrefix)
	if prefix == "" {
		prefix = "mlcompare:form:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	serviceLog := log.With("service", "RedisDraftStore")
	serviceLog.Info("Draft store initialized", "addr", addr, "prefix", prefix, "ttl", ttl.String())
	return &redisStore{log: serviceLog, rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (s *redisStore) key(session string) string { return s.prefix + session }

func (s *redisStore) Load(ctx context.Context, session string) (trainform.State, error) {
	raw, err := s.rdb.Get(ctx, s.key(session)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return trainform.State{}, ErrNotFound
	}
	if err != nil {
		return trainform.State{}, fmt.Errorf("redis get draft: %w", err)
	}
	var st trainform.State
	if err := json.Unmarshal(raw, &st); err != nil {
		s.log.Warn("discarding unreadable draft", "draft_key", s.key(session), "error", err)
		_ = s.rdb.Del(ctx, s.key(session)).Err()
		return trainform.State{}, ErrNotFound
	}
	return st, nil
}

func (s *redisStore) Save(ctx context.Context, session string, st trainform.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(session), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set draft: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, session string) error {
	return s.rdb.Del(ctx, s.key(session)).Err()
}

func (s *redisStore) Close() error { return s.rdb.Close() }
