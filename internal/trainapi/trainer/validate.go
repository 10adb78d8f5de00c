package trainer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/hyperparams"
)

// backendOnly are parameter names the API accepts beyond the form registry.
var backendOnly = map[hyperparams.ModelTypeID][]string{
	hyperparams.LinearRegression: {"normalize"},
	hyperparams.RandomForest:     {"n_jobs"},
}

// ignored are accepted but never reach the estimator.
var ignored = map[hyperparams.ModelTypeID][]string{
	hyperparams.LinearRegression: {"normalize"},
}

// ValidateModelConfig checks the model type and every hyperparameter name,
// and that registry-known values are within bounds.
func ValidateModelConfig(cfg client.ModelConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("Invalid model configuration: {'name': ['This field may not be blank.']}")
	}
	id, ok := hyperparams.Parse(cfg.ModelType)
	if !ok {
		return fmt.Errorf("Invalid model configuration: Invalid model type: %s", cfg.ModelType)
	}
	names := make([]string, 0, len(cfg.Hyperparameters))
	for name := range cfg.Hyperparameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec, known := hyperparams.Find(id, name)
		if !known {
			if contains(backendOnly[id], name) {
				continue
			}
			return fmt.Errorf("Invalid model configuration: Invalid hyperparameter '%s' for model type '%s'", name, id)
		}
		v := cfg.Hyperparameters[name]
		if v == nil {
			continue
		}
		if err := spec.Validate(v); err != nil {
			return fmt.Errorf("Invalid model configuration: %v", err)
		}
	}
	return nil
}

// EffectiveParams drops parameters the estimator does not take.
func EffectiveParams(id hyperparams.ModelTypeID, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if contains(ignored[id], k) {
			continue
		}
		out[k] = v
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
