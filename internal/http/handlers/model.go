package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/http/response"
	"github.com/yungbote/mlcompare/internal/platform/blobstore"
	"github.com/yungbote/mlcompare/internal/platform/dbctx"
	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainapi/store"
	"github.com/yungbote/mlcompare/internal/trainapi/trainer"
)

const msgDatasetNotFound = "Dataset not found"

type ModelHandler struct {
	log     *logger.Logger
	repo    store.Repo
	blobs   blobstore.Store
	trainer *trainer.Trainer
}

func NewModelHandler(log *logger.Logger, repo store.Repo, blobs blobstore.Store, tr *trainer.Trainer) *ModelHandler {
	return &ModelHandler{
		log:     log.With("handler", "ModelHandler"),
		repo:    repo,
		blobs:   blobs,
		trainer: tr,
	}
}

// List handles GET /models/, newest first.
func (h *ModelHandler) List(c *gin.Context) {
	rows, err := h.repo.ListModels(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]client.MLModel, 0, len(rows))
	for _, row := range rows {
		out = append(out, modelView(row))
	}
	response.RespondOK(c, out)
}

// Get handles GET /models/:id/.
func (h *ModelHandler) Get(c *gin.Context) {
	row, ok := h.lookup(c)
	if !ok {
		return
	}
	response.RespondOK(c, modelView(row))
}

func (h *ModelHandler) lookup(c *gin.Context) (*store.MLModel, bool) {
	row, err := h.repo.GetModel(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		response.RespondMessage(c, http.StatusNotFound, msgNotFound)
		return nil, false
	}
	if err != nil {
		h.log.Error("get model failed", "model_id", c.Param("id"), "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return row, true
}

type trainStoredRequest struct {
	DatasetID    string `json:"dataset_id" form:"dataset_id"`
	TargetColumn string `json:"target_column" form:"target_column"`
}

// Train handles POST /models/:id/train/: the stored model is trained on a
// stored dataset for one target column and the run is recorded.
func (h *ModelHandler) Train(c *gin.Context) {
	model, ok := h.lookup(c)
	if !ok {
		return
	}
	var req trainStoredRequest
	if err := c.ShouldBind(&req); err != nil {
		response.RespondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	dbc := dbctx.Context{Ctx: ctx}
	ds, err := h.repo.GetDataset(dbc, req.DatasetID)
	if errors.Is(err, store.ErrNotFound) {
		response.RespondMessage(c, http.StatusNotFound, msgDatasetNotFound)
		return
	}
	if err != nil {
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	table, err := h.readDataset(c, ds)
	if err != nil {
		response.RespondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	params := map[string]any{}
	if len(model.Hyperparameters) > 0 {
		if err := json.Unmarshal(model.Hyperparameters, &params); err != nil {
			response.RespondMessage(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	out, err := h.trainer.Run(table, trainer.Job{
		Config: client.ModelConfig{Name: model.Name, ModelType: model.ModelType, Hyperparameters: params},
		Target: req.TargetColumn,
	})
	if err != nil {
		h.log.Warn("stored model training failed", "model_id", model.ID, "dataset_id", ds.ID, "error", err)
		response.RespondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := json.Marshal(out.Metrics)
	if err != nil {
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	fi, err := json.Marshal(out.FeatureImportance)
	if err != nil {
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	row := &store.TrainingResult{
		ID:                uuid.NewString(),
		DatasetID:         ds.ID,
		ModelID:           model.ID,
		Target:            req.TargetColumn,
		Metrics:           datatypes.JSON(metrics),
		FeatureImportance: datatypes.JSON(fi),
		CreatedAt:         time.Now().UTC(),
	}
	if err := h.repo.CreateResult(dbc, row); err != nil {
		h.log.Error("create training result failed", "model_id", model.ID, "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.log.Info("stored model trained", "model_id", model.ID, "dataset_id", ds.ID, "result_id", row.ID)
	response.RespondOK(c, gin.H{
		"metrics":            out.Metrics,
		"feature_importance": out.FeatureImportance,
		"scatter_data":       out.ScatterData,
		"model_info":         out.ModelInfo,
	})
}

func (h *ModelHandler) readDataset(c *gin.Context, ds *store.Dataset) (*trainer.Table, error) {
	rc, err := h.blobs.Open(c.Request.Context(), ds.StorageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return trainer.ParseCSV(rc)
}
