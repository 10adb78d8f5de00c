package handlers

import (
	"encoding/json"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/trainapi/store"
)

func datasetView(row *store.Dataset) map[string]any {
	cols := []string{}
	if len(row.Columns) > 0 {
		_ = json.Unmarshal(row.Columns, &cols)
	}
	return map[string]any{
		"id":          row.ID,
		"name":        row.Name,
		"columns":     cols,
		"row_count":   row.RowCount,
		"uploaded_at": row.UploadedAt,
	}
}

func modelView(row *store.MLModel) client.MLModel {
	params := map[string]any{}
	if len(row.Hyperparameters) > 0 {
		_ = json.Unmarshal(row.Hyperparameters, &params)
	}
	return client.MLModel{
		ID:              client.ID(row.ID),
		Name:            row.Name,
		ModelType:       row.ModelType,
		Hyperparameters: params,
		CreatedAt:       row.CreatedAt,
	}
}

func resultView(row *store.TrainingResult) client.TrainedModel {
	out := client.TrainedModel{
		ID:        client.ID(row.ID),
		Target:    row.Target,
		CreatedAt: row.CreatedAt,
	}
	if row.Dataset != nil {
		out.Dataset = row.Dataset.Name
	}
	if row.Model != nil {
		out.Model = row.Model.Name
		out.ModelType = row.Model.ModelType
	}
	if len(row.Metrics) > 0 {
		_ = json.Unmarshal(row.Metrics, &out.Metrics)
	}
	if len(row.FeatureImportance) > 0 {
		_ = json.Unmarshal(row.FeatureImportance, &out.FeatureImportance)
	}
	return out
}
