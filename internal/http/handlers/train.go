package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/http/response"
	"github.com/yungbote/mlcompare/internal/platform/blobstore"
	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainapi/store"
	"github.com/yungbote/mlcompare/internal/trainapi/trainer"
)

type TrainHandler struct {
	log     *logger.Logger
	repo    store.Repo
	blobs   blobstore.Store
	trainer *trainer.Trainer
	maxFile int64
}

func NewTrainHandler(log *logger.Logger, repo store.Repo, blobs blobstore.Store, tr *trainer.Trainer, maxFile int64) *TrainHandler {
	if maxFile <= 0 {
		maxFile = defaultMaxFile
	}
	return &TrainHandler{
		log:     log.With("handler", "TrainHandler"),
		repo:    repo,
		blobs:   blobs,
		trainer: tr,
		maxFile: maxFile,
	}
}

// Train handles POST /train/: one dataset, N model configs and M target
// columns in, N×M training runs out.
func (h *TrainHandler) Train(c *gin.Context) {
	name, content, status, err := readCSVUpload(c, h.maxFile)
	if err != nil {
		response.RespondMessage(c, status, err.Error())
		return
	}
	table, err := trainer.ParseCSVBytes(content)
	if err != nil {
		response.RespondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	var targets []string
	if err := decodeFormJSON(c, "target_columns", &targets); err != nil {
		response.RespondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if missing := table.Missing(targets); len(missing) > 0 {
		response.RespondMessage(c, http.StatusBadRequest, "Target columns not found in dataset: "+pyList(missing))
		return
	}
	for _, col := range targets {
		if n := table.NonNullCount(col); n < h.trainer.MinTargetValues() {
			response.RespondMessage(c, http.StatusBadRequest,
				fmt.Sprintf("Insufficient data for target column %s. Only %d non-null values available.", col, n))
			return
		}
	}

	var configs []client.ModelConfig
	if err := decodeFormJSON(c, "models", &configs); err != nil {
		response.RespondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, cfg := range configs {
		if err := trainer.ValidateModelConfig(cfg); err != nil {
			response.RespondMessage(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	jobs := make([]trainer.Job, 0, len(configs)*len(targets))
	for _, cfg := range configs {
		for _, target := range targets {
			jobs = append(jobs, trainer.Job{Config: cfg, Target: target})
		}
	}
	outcomes, err := h.trainer.RunAll(c.Request.Context(), table, jobs)
	if err != nil {
		h.log.Warn("training failed", "error", err)
		response.RespondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	ds, err := storeDataset(c, h.blobs, name, content, table)
	if err != nil {
		h.log.Error("store dataset file failed", "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	batch, runs, err := buildBatch(ds, configs, targets, outcomes)
	if err != nil {
		_ = h.blobs.Delete(c.Request.Context(), ds.StorageKey)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.repo.SaveBatch(c.Request.Context(), batch); err != nil {
		_ = h.blobs.Delete(c.Request.Context(), ds.StorageKey)
		h.log.Error("save training batch failed", "dataset_id", ds.ID, "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Info("training complete",
		"dataset_id", ds.ID,
		"models", len(configs),
		"targets", len(targets),
		"results", len(runs),
	)
	response.RespondCreated(c, runs)
}

// buildBatch lays out one MLModel per config and one result per
// (config, target), in request order.
func buildBatch(ds *store.Dataset, configs []client.ModelConfig, targets []string, outcomes []trainer.Outcome) (store.Batch, []client.TrainingRun, error) {
	now := ds.UploadedAt
	batch := store.Batch{Dataset: ds}
	runs := make([]client.TrainingRun, 0, len(outcomes))
	seq := 0
	for _, cfg := range configs {
		params := cfg.Hyperparameters
		if params == nil {
			params = map[string]any{}
		}
		rawParams, err := json.Marshal(params)
		if err != nil {
			return store.Batch{}, nil, err
		}
		m := &store.MLModel{
			ID:              uuid.NewString(),
			Name:            cfg.Name,
			ModelType:       strings.TrimSpace(cfg.ModelType),
			Hyperparameters: datatypes.JSON(rawParams),
			CreatedAt:       now,
		}
		batch.Models = append(batch.Models, m)

		for _, target := range targets {
			o := outcomes[seq]
			metrics, err := json.Marshal(o.Metrics)
			if err != nil {
				return store.Batch{}, nil, err
			}
			fi, err := json.Marshal(o.FeatureImportance)
			if err != nil {
				return store.Batch{}, nil, err
			}
			r := &store.TrainingResult{
				ID:                uuid.NewString(),
				DatasetID:         ds.ID,
				ModelID:           m.ID,
				Target:            target,
				Metrics:           datatypes.JSON(metrics),
				FeatureImportance: datatypes.JSON(fi),
				// keeps newest-first listing in creation order within a batch
				CreatedAt: now.Add(time.Duration(seq) * time.Microsecond),
			}
			batch.Results = append(batch.Results, r)
			runs = append(runs, client.TrainingRun{
				ID:                client.ID(r.ID),
				Dataset:           ds.Name,
				Model:             m.Name,
				ModelType:         m.ModelType,
				Target:            target,
				Metrics:           o.Metrics,
				FeatureImportance: o.FeatureImportance,
				ScatterData:       o.ScatterData,
				ModelInfo:         o.ModelInfo,
			})
			seq++
		}
	}
	return batch, runs, nil
}

// decodeFormJSON reads a JSON-encoded multipart field; absent means empty.
func decodeFormJSON(c *gin.Context, field string, out any) error {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		raw = "[]"
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("invalid %s: %v", field, err)
	}
	return nil
}

func pyList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
