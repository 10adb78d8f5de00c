// Package app wires the console and training API processes.
package app

import (
	"context"
	"fmt"

	"github.com/yungbote/mlcompare/internal/config"
	httpx "github.com/yungbote/mlcompare/internal/http"
	"github.com/yungbote/mlcompare/internal/observability"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

type closer func() error

type base struct {
	Log *logger.Logger

	server  *httpx.Server
	closers []closer
}

func newLogger(env string) (*logger.Logger, error) {
	log, err := logger.New(env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func serverConfig(h config.HTTPConfig) httpx.ServerConfig {
	return httpx.ServerConfig{
		Addr:              h.Addr,
		ReadHeaderTimeout: h.ReadHeaderTimeout.Duration,
		IdleTimeout:       h.IdleTimeout.Duration,
		ShutdownTimeout:   h.ShutdownTimeout.Duration,
	}
}

func initObservability(ctx context.Context, log *logger.Logger, service, env, version string) (*observability.Metrics, closer) {
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv(service, env, version))
	return observability.Init(log), func() error { return shutdown(context.Background()) }
}

// Run serves until ctx is cancelled and then releases everything the
// process opened, in reverse order.
func (b *base) Run(ctx context.Context) error {
	err := b.server.Run(ctx)
	b.Close()
	return err
}

func (b *base) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if cerr := b.closers[i](); cerr != nil {
			b.Log.Warn("close failed", "error", cerr)
		}
	}
	b.closers = nil
	b.Log.Sync()
}
