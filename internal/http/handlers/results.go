package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/http/response"
	"github.com/yungbote/mlcompare/internal/hyperparams"
	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/results"
)

// ResultsSource is the part of the API client the results pages read from.
type ResultsSource interface {
	ListTrainingResults(ctx context.Context) ([]client.TrainedModel, error)
	GetResultDetails(ctx context.Context, id string) (*client.TrainedModel, error)
}

type PageHandler struct {
	log *logger.Logger
	api ResultsSource
}

func NewPageHandler(log *logger.Logger, api ResultsSource) *PageHandler {
	return &PageHandler{log: log.With("handler", "PageHandler"), api: api}
}

type listView struct {
	Results    []client.TrainedModel `json:"results"`
	Total      int                   `json:"total"`
	Query      string                `json:"query,omitempty"`
	Sort       results.SortKey       `json:"sort"`
	SortKeys   []results.SortKey     `json:"sort_keys"`
	BarChart   results.Chart         `json:"bar_chart"`
	RadarChart results.Chart         `json:"radar_chart"`
}

type comparisonView struct {
	Results    []client.TrainedModel `json:"results"`
	Datasets   []string              `json:"datasets"`
	ModelTypes []string              `json:"model_types"`
	Dataset    string                `json:"dataset,omitempty"`
	ModelType  string                `json:"model_type,omitempty"`
	BarChart   results.Chart         `json:"bar_chart"`
	RadarChart results.Chart         `json:"radar_chart"`
}

type detailsView struct {
	Result            client.TrainedModel `json:"result"`
	FeatureImportance results.Chart       `json:"feature_importance_chart"`
}

func (h *PageHandler) upstreamError(c *gin.Context, op string, err error) {
	h.log.Warn("training API call failed", "op", op, "error", err)
	response.RespondAPIError(c, err)
}

// List handles GET /: every training result in the order the API returned
// them, optionally filtered by ?q= and re-ordered by ?sort=.
func (h *PageHandler) List(c *gin.Context) {
	all, err := h.api.ListTrainingResults(c.Request.Context())
	if err != nil {
		h.upstreamError(c, "list results", err)
		return
	}
	// no key keeps the API's order
	var key results.SortKey
	if raw := strings.TrimSpace(c.Query("sort")); raw != "" {
		k, ok := results.ParseSortKey(raw)
		if !ok {
			response.RespondError(c, http.StatusBadRequest, "invalid_sort", errInvalidSort(raw))
			return
		}
		key = k
	}
	q := strings.TrimSpace(c.Query("q"))
	rows := results.Sort(results.Filter(all, q), key)
	response.RespondOK(c, listView{
		Results:    rows,
		Total:      len(all),
		Query:      q,
		Sort:       key,
		SortKeys:   results.SortKeys,
		BarChart:   results.BarChart(rows),
		RadarChart: results.RadarChart(rows),
	})
}

// Compare handles GET /model-comparison with optional ?dataset= and ?model=.
func (h *PageHandler) Compare(c *gin.Context) {
	all, err := h.api.ListTrainingResults(c.Request.Context())
	if err != nil {
		h.upstreamError(c, "list results", err)
		return
	}
	ds := strings.TrimSpace(c.Query("dataset"))
	mt := strings.TrimSpace(c.Query("model"))
	rows := results.FilterExact(all, ds, mt)
	response.RespondOK(c, comparisonView{
		Results:    rows,
		Datasets:   results.UniqueDatasets(all),
		ModelTypes: results.UniqueModelTypes(all),
		Dataset:    ds,
		ModelType:  mt,
		BarChart:   results.BarChart(rows),
		RadarChart: results.RadarChart(rows),
	})
}

// Details handles GET /model-details/:id.
func (h *PageHandler) Details(c *gin.Context) {
	m, err := h.api.GetResultDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.upstreamError(c, "result details", err)
		return
	}
	response.RespondOK(c, detailsView{
		Result:            *m,
		FeatureImportance: results.FeatureImportanceChart(*m),
	})
}

type modelTypeView struct {
	hyperparams.TypeInfo
	Hyperparameters []paramView `json:"hyperparameters"`
}

// ModelTypes handles GET /model-types: the registry with defaults.
func (h *PageHandler) ModelTypes(c *gin.Context) {
	types := hyperparams.Types()
	out := make([]modelTypeView, 0, len(types))
	for _, t := range types {
		out = append(out, modelTypeView{
			TypeInfo:        t,
			Hyperparameters: paramViews(t.ID, hyperparams.Defaults(t.ID)),
		})
	}
	response.RespondOK(c, out)
}

type errInvalidSort string

func (e errInvalidSort) Error() string {
	keys := make([]string, len(results.SortKeys))
	for i, k := range results.SortKeys {
		keys[i] = string(k)
	}
	return "invalid sort key " + strconv.Quote(string(e)) + " (allowed: " + strings.Join(keys, ", ") + ")"
}
