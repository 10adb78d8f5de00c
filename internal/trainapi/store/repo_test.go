package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/mlcompare/internal/platform/dbctx"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

func testRepo(t *testing.T) Repo {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := open(dsn, logger.Nop(), gormLogger.Default.LogMode(gormLogger.Silent))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepo(db, logger.Nop())
}

func TestIsPostgresDSN(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@db:5432/ml":  true,
		"postgresql://db/ml":         true,
		"host=db user=u dbname=ml":   true,
		"mlcompare.db":               false,
		"file::memory:?cache=shared": false,
	}
	for dsn, want := range cases {
		if got := IsPostgresDSN(dsn); got != want {
			t.Fatalf("IsPostgresDSN(%q)=%v want %v", dsn, got, want)
		}
	}
}

func TestSaveBatchAndList(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ds := &Dataset{ID: uuid.NewString(), Name: "housing.csv", Columns: datatypes.JSON(`["a","b"]`), RowCount: 60, UploadedAt: now}
	m := &MLModel{ID: uuid.NewString(), Name: "random_forest Model", ModelType: "random_forest", Hyperparameters: datatypes.JSON(`{}`), CreatedAt: now}
	older := &TrainingResult{ID: uuid.NewString(), DatasetID: ds.ID, ModelID: m.ID, Target: "a", Metrics: datatypes.JSON(`{"r2_score":0.5}`), CreatedAt: now.Add(-time.Minute)}
	newer := &TrainingResult{ID: uuid.NewString(), DatasetID: ds.ID, ModelID: m.ID, Target: "b", Metrics: datatypes.JSON(`{"r2_score":0.7}`), CreatedAt: now}

	if err := r.SaveBatch(ctx, Batch{Dataset: ds, Models: []*MLModel{m}, Results: []*TrainingResult{older, newer}}); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	rows, err := r.ListResults(dbc)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != newer.ID {
		t.Fatalf("unexpected order: %+v", rows)
	}
	if rows[0].Dataset == nil || rows[0].Dataset.Name != "housing.csv" || rows[0].Model == nil || rows[0].Model.ModelType != "random_forest" {
		t.Fatalf("associations not loaded: %+v", rows[0])
	}

	got, err := r.GetResult(dbc, older.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.Target != "a" {
		t.Fatalf("target=%q", got.Target)
	}
	if _, err := r.GetResult(dbc, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	models, err := r.ListModels(dbc)
	if err != nil || len(models) != 1 {
		t.Fatalf("models=%v err=%v", models, err)
	}
	datasets, err := r.ListDatasets(dbc)
	if err != nil || len(datasets) != 1 {
		t.Fatalf("datasets=%v err=%v", datasets, err)
	}
}

func TestSaveBatchRollsBack(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	ds := &Dataset{ID: uuid.NewString(), Name: "a.csv", UploadedAt: time.Now()}
	dup := uuid.NewString()
	models := []*MLModel{
		{ID: dup, Name: "x", ModelType: "knn", CreatedAt: time.Now()},
		{ID: dup, Name: "y", ModelType: "knn", CreatedAt: time.Now()},
	}
	if err := r.SaveBatch(ctx, Batch{Dataset: ds, Models: models}); err == nil {
		t.Fatalf("expected duplicate key error")
	}
	datasets, err := r.ListDatasets(dbctx.Context{Ctx: ctx})
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(datasets) != 0 {
		t.Fatalf("dataset should have been rolled back, got %d", len(datasets))
	}
}

func TestGetByIDAndCreateResult(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	now := time.Now().UTC()

	ds := &Dataset{ID: uuid.NewString(), Name: "cars.csv", UploadedAt: now}
	m := &MLModel{ID: uuid.NewString(), Name: "knn Model", ModelType: "knn", CreatedAt: now}
	if err := r.SaveBatch(ctx, Batch{Dataset: ds, Models: []*MLModel{m}}); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	gotDS, err := r.GetDataset(dbc, ds.ID)
	if err != nil || gotDS.Name != "cars.csv" {
		t.Fatalf("GetDataset: %+v err=%v", gotDS, err)
	}
	gotM, err := r.GetModel(dbc, m.ID)
	if err != nil || gotM.ModelType != "knn" {
		t.Fatalf("GetModel: %+v err=%v", gotM, err)
	}
	if _, err := r.GetDataset(dbc, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetDataset missing: %v", err)
	}
	if _, err := r.GetModel(dbc, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetModel missing: %v", err)
	}

	res := &TrainingResult{ID: uuid.NewString(), DatasetID: ds.ID, ModelID: m.ID, Target: "price", CreatedAt: now, Dataset: gotDS, Model: gotM}
	if err := r.CreateResult(dbc, res); err != nil {
		t.Fatalf("CreateResult: %v", err)
	}
	got, err := r.GetResult(dbc, res.ID)
	if err != nil || got.Model == nil || got.Model.Name != "knn Model" {
		t.Fatalf("GetResult: %+v err=%v", got, err)
	}
	datasets, _ := r.ListDatasets(dbc)
	if len(datasets) != 1 {
		t.Fatalf("associations must not be re-inserted, datasets=%d", len(datasets))
	}
}
