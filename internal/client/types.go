package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a server-assigned identifier. The API has emitted both integer and
// string ids, so both decode into the same textual form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Int reports the numeric value of id when it is an integer.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

type Metrics struct {
	R2Score float64 `json:"r2_score"`
	MSE     float64 `json:"mse"`
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
}

// TrainedModel is one row of GET /results/.
type TrainedModel struct {
	ID                ID                 `json:"id"`
	Dataset           string             `json:"dataset"`
	Model             string             `json:"model"`
	ModelType         string             `json:"model_type,omitempty"`
	Target            string             `json:"target,omitempty"`
	Metrics           Metrics            `json:"metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Kind returns the model type, falling back to the model name for servers
// that do not report model_type separately.
func (m TrainedModel) Kind() string {
	if strings.TrimSpace(m.ModelType) != "" {
		return m.ModelType
	}
	return m.Model
}

type Dataset struct {
	ID         ID        `json:"id"`
	Name       string    `json:"name"`
	Columns    []string  `json:"columns,omitempty"`
	RowCount   int       `json:"row_count,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type MLModel struct {
	ID              ID             `json:"id"`
	Name            string         `json:"name"`
	ModelType       string         `json:"model_type"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ModelConfig is the serialised form of one configured model block.
type ModelConfig struct {
	Name            string         `json:"name"`
	ModelType       string         `json:"model_type"`
	Hyperparameters map[string]any `json:"hyperparameters"`
}

type TrainingRequest struct {
	FileName      string
	File          []byte
	Models        []ModelConfig
	TargetColumns []string
}

type ScatterPoint struct {
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

type TrainingRun struct {
	ID                ID                 `json:"id"`
	Dataset           string             `json:"dataset"`
	Model             string             `json:"model"`
	ModelType         string             `json:"model_type,omitempty"`
	Target            string             `json:"target,omitempty"`
	Metrics           Metrics            `json:"metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	ScatterData       []ScatterPoint     `json:"scatter_data,omitempty"`
	ModelInfo         map[string]any     `json:"model_info,omitempty"`
}

// TrainingResponse accepts the list of runs the API returns on 201, and also
// the object shapes {"results": [...], "message": "..."} or a single run.
type TrainingResponse struct {
	Message string        `json:"message,omitempty"`
	Runs    []TrainingRun `json:"results"`
}

func (r *TrainingResponse) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*r = TrainingResponse{}
		return nil
	}
	if b[0] == '[' {
		var runs []TrainingRun
		if err := json.Unmarshal(b, &runs); err != nil {
			return err
		}
		*r = TrainingResponse{Runs: runs}
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	out := TrainingResponse{}
	if raw, ok := fields["message"]; ok {
		_ = json.Unmarshal(raw, &out.Message)
	}
	if raw, ok := fields["results"]; ok {
		if err := json.Unmarshal(raw, &out.Runs); err != nil {
			return err
		}
		*r = out
		return nil
	}
	if _, ok := fields["metrics"]; ok {
		var run TrainingRun
		if err := json.Unmarshal(b, &run); err != nil {
			return err
		}
		out.Runs = []TrainingRun{run}
	}
	*r = out
	return nil
}
