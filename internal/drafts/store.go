// Package drafts persists training form state per console session.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainform"
)

var ErrNotFound = errors.New("draft not found")

type Store interface {
	Load(ctx context.Context, session string) (trainform.State, error)
	Save(ctx context.Context, session string, st trainform.State) error
	Delete(ctx context.Context, session string) error
	Close() error
}

type Mode string

const (
	ModeMemory Mode = "memory"
	ModeRedis  Mode = "redis"
)

type Options struct {
	Mode      Mode
	RedisAddr string
	KeyPrefix string
	TTL       time.Duration
}

// New builds the store selected by opts.Mode.
func New(ctx context.Context, log *logger.Logger, opts Options) (Store, error) {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	switch Mode(strings.ToLower(string(opts.Mode))) {
	case "", ModeMemory:
		return NewMemory(opts.TTL), nil
	case ModeRedis:
		return NewRedis(ctx, log, opts)
	default:
		return nil, fmt.Errorf("unknown drafts mode %q (allowed: %q, %q)", opts.Mode, ModeMemory, ModeRedis)
	}
}
