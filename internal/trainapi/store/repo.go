package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/mlcompare/internal/platform/dbctx"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

var ErrNotFound = errors.New("record not found")

// Batch is everything one training request persists.
type Batch struct {
	Dataset *Dataset
	Models  []*MLModel
	Results []*TrainingResult
}

type Repo interface {
	CreateDataset(dbc dbctx.Context, row *Dataset) error
	ListDatasets(dbc dbctx.Context) ([]*Dataset, error)
	GetDataset(dbc dbctx.Context, id string) (*Dataset, error)
	ListModels(dbc dbctx.Context) ([]*MLModel, error)
	GetModel(dbc dbctx.Context, id string) (*MLModel, error)

	// ListResults returns results newest first with Dataset and Model loaded.
	ListResults(dbc dbctx.Context) ([]*TrainingResult, error)
	GetResult(dbc dbctx.Context, id string) (*TrainingResult, error)
	CreateResult(dbc dbctx.Context, row *TrainingResult) error

	SaveBatch(ctx context.Context, b Batch) error
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &repo{db: db, log: baseLog.With("repo", "TrainingRepo")}
}

func (r *repo) CreateDataset(dbc dbctx.Context, row *Dataset) error {
	if row == nil {
		return errors.New("nil dataset")
	}
	return dbc.Conn(r.db).Create(row).Error
}

func (r *repo) ListDatasets(dbc dbctx.Context) ([]*Dataset, error) {
	out := []*Dataset{}
	if err := dbc.Conn(r.db).Order("uploaded_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) GetDataset(dbc dbctx.Context, id string) (*Dataset, error) {
	var row Dataset
	if err := first(dbc.Conn(r.db).Where("id = ?", id), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) GetModel(dbc dbctx.Context, id string) (*MLModel, error) {
	var row MLModel
	if err := first(dbc.Conn(r.db).Where("id = ?", id), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// first maps gorm's missing-row error to ErrNotFound.
func first(q *gorm.DB, out any) error {
	err := q.First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *repo) ListModels(dbc dbctx.Context) ([]*MLModel, error) {
	out := []*MLModel{}
	if err := dbc.Conn(r.db).Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) ListResults(dbc dbctx.Context) ([]*TrainingResult, error) {
	out := []*TrainingResult{}
	err := dbc.Conn(r.db).
		Preload("Dataset").
		Preload("Model").
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) GetResult(dbc dbctx.Context, id string) (*TrainingResult, error) {
	var row TrainingResult
	q := dbc.Conn(r.db).
		Preload("Dataset").
		Preload("Model").
		Where("id = ?", id)
	if err := first(q, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) CreateResult(dbc dbctx.Context, row *TrainingResult) error {
	if row == nil {
		return errors.New("nil training result")
	}
	return dbc.Conn(r.db).Omit("Dataset", "Model").Create(row).Error
}

func (r *repo) SaveBatch(ctx context.Context, b Batch) error {
	if b.Dataset == nil {
		return errors.New("batch without dataset")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := r.CreateDataset(dbc, b.Dataset); err != nil {
			return err
		}
		if len(b.Models) > 0 {
			if err := dbc.Conn(r.db).Create(&b.Models).Error; err != nil {
				return err
			}
		}
		if len(b.Results) > 0 {
			if err := dbc.Conn(r.db).Omit("Dataset", "Model").Create(&b.Results).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Warn("save training batch failed", "dataset_id", b.Dataset.ID, "error", err)
		return err
	}
	r.log.Debug("saved training batch", "dataset_id", b.Dataset.ID, "models", len(b.Models), "results", len(b.Results))
	return nil
}
