package app

import (
	"context"
	"fmt"

	"github.com/yungbote/mlcompare/internal/config"
	httpx "github.com/yungbote/mlcompare/internal/http"
	httpH "github.com/yungbote/mlcompare/internal/http/handlers"
	"github.com/yungbote/mlcompare/internal/platform/blobstore"
	"github.com/yungbote/mlcompare/internal/trainapi/store"
	"github.com/yungbote/mlcompare/internal/trainapi/trainer"
)

// TrainAPI serves dataset upload, training and stored results.
type TrainAPI struct {
	base
	Config *config.TrainAPIConfig
}

func NewTrainAPI(ctx context.Context) (*TrainAPI, error) {
	cfg, err := config.LoadTrainAPI()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Env)
	if err != nil {
		return nil, err
	}
	a := &TrainAPI{base: base{Log: log}, Config: cfg}

	metrics, stopOTel := initObservability(ctx, log, "mlcompare-trainapi", cfg.Env, cfg.Version)
	a.closers = append(a.closers, stopOTel)

	db, err := store.Open(cfg.DB.DSN, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, sqlDB.Close)

	blobs, err := blobstore.New(ctx, log, blobstore.Config{
		Mode:         blobstore.Mode(cfg.Storage.Mode),
		LocalDir:     cfg.Storage.LocalDir,
		Bucket:       cfg.Storage.Bucket,
		EmulatorHost: cfg.Storage.EmulatorHost,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init dataset storage: %w", err)
	}
	a.closers = append(a.closers, blobs.Close)

	repo := store.NewRepo(db, log)
	tr := trainer.New(trainer.Options{
		Concurrency:     cfg.Trainer.Concurrency,
		TestFraction:    cfg.Trainer.TestFraction,
		MinTargetValues: cfg.Trainer.MinTargetValues,
		Log:             log,
	})

	a.server = httpx.NewServer(serverConfig(cfg.HTTP), httpx.RouterConfig{
		ServiceName:     "mlcompare-trainapi",
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		BasePath:        cfg.BasePath,
		HealthHandler:   httpH.NewHealthHandler("trainapi", cfg.Version),
		DatasetHandler:  httpH.NewDatasetHandler(log, repo, blobs, cfg.HTTP.MaxRequestBytes),
		ModelHandler:    httpH.NewModelHandler(log, repo, blobs, tr),
		ResultHandler:   httpH.NewResultHandler(log, repo),
		TrainHandler:    httpH.NewTrainHandler(log, repo, blobs, tr, cfg.HTTP.MaxRequestBytes),
	})
	log.Info("training API configured",
		"db_driver", driverName(cfg.DB.DSN),
		"storage_mode", cfg.Storage.Mode,
		"base_path", cfg.BasePath,
		"concurrency", cfg.Trainer.Concurrency,
		"addr", cfg.HTTP.Addr,
	)
	return a, nil
}

func driverName(dsn string) string {
	if store.IsPostgresDSN(dsn) {
		return "postgres"
	}
	return "sqlite"
}
