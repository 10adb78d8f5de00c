package app

import (
	"context"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/config"
	"github.com/yungbote/mlcompare/internal/drafts"
	httpx "github.com/yungbote/mlcompare/internal/http"
	httpH "github.com/yungbote/mlcompare/internal/http/handlers"
)

// Console serves the results pages and the training form.
type Console struct {
	base
	Config *config.ConsoleConfig
}

func NewConsole(ctx context.Context) (*Console, error) {
	cfg, err := config.LoadConsole()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Env)
	if err != nil {
		return nil, err
	}
	a := &Console{base: base{Log: log}, Config: cfg}

	metrics, stopOTel := initObservability(ctx, log, "mlcompare-console", cfg.Env, cfg.Version)
	a.closers = append(a.closers, stopOTel)

	store, err := drafts.New(ctx, log, drafts.Options{
		Mode:      drafts.Mode(cfg.Drafts.Mode),
		RedisAddr: cfg.Drafts.RedisAddr,
		KeyPrefix: cfg.Drafts.KeyPrefix,
		TTL:       cfg.Drafts.TTL.Duration,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	api, err := client.New(client.Options{
		BaseURL:          cfg.API.BaseURL,
		Timeout:          cfg.API.Timeout.Duration,
		MaxResponseBytes: cfg.HTTP.MaxRequestBytes,
		Log:              log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	sessions := drafts.NewSessions(store, log)

	a.server = httpx.NewServer(serverConfig(cfg.HTTP), httpx.RouterConfig{
		ServiceName:     "mlcompare-console",
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		SecureCookie:    cfg.Env == "production",
		HealthHandler:   httpH.NewHealthHandler("console", cfg.Version),
		PageHandler:     httpH.NewPageHandler(log, api),
		FormHandler:     httpH.NewFormHandler(log, sessions, api),
	})
	log.Info("console configured",
		"api_base_url", api.BaseURL(),
		"drafts_mode", cfg.Drafts.Mode,
		"addr", cfg.HTTP.Addr,
	)
	return a, nil
}
