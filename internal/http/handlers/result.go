package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/http/response"
	"github.com/yungbote/mlcompare/internal/platform/dbctx"
	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainapi/store"
)

type ResultHandler struct {
	log  *logger.Logger
	repo store.Repo
}

func NewResultHandler(log *logger.Logger, repo store.Repo) *ResultHandler {
	return &ResultHandler{log: log.With("handler", "ResultHandler"), repo: repo}
}

// List handles GET /results/, newest first.
func (h *ResultHandler) List(c *gin.Context) {
	rows, err := h.repo.ListResults(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		h.log.Error("list results failed", "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]client.TrainedModel, 0, len(rows))
	for _, row := range rows {
		out = append(out, resultView(row))
	}
	h.log.Debug("listed training results", "count", len(out))
	response.RespondOK(c, out)
}

// Get handles GET /results/:id/.
func (h *ResultHandler) Get(c *gin.Context) {
	row, err := h.repo.GetResult(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		response.RespondMessage(c, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.log.Error("get result failed", "result_id", c.Param("id"), "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.RespondOK(c, resultView(row))
}

// Debug handles GET /debug/: a flat dump of every stored record.
func (h *ResultHandler) Debug(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	datasets, err := h.repo.ListDatasets(dbc)
	if err != nil {
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	models, err := h.repo.ListModels(dbc)
	if err != nil {
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	results, err := h.repo.ListResults(dbc)
	if err != nil {
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}

	ds := make([]gin.H, 0, len(datasets))
	for _, d := range datasets {
		ds = append(ds, gin.H{"id": d.ID, "name": d.Name, "row_count": d.RowCount})
	}
	ms := make([]gin.H, 0, len(models))
	for _, m := range models {
		ms = append(ms, gin.H{"id": m.ID, "name": m.Name, "type": m.ModelType})
	}
	rs := make([]gin.H, 0, len(results))
	for _, r := range results {
		v := resultView(r)
		rs = append(rs, gin.H{"id": v.ID, "dataset": v.Dataset, "model": v.Model, "metrics": v.Metrics})
	}
	response.RespondOK(c, gin.H{"datasets": ds, "models": ms, "results": rs})
}
