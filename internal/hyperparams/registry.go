// Package hyperparams is the static catalogue of supported model types and
// the hyperparameters each one exposes, with their defaults and bounds.
package hyperparams

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type ModelTypeID string

const (
	LinearRegression ModelTypeID = "linear_regression"
	RandomForest     ModelTypeID = "random_forest"
	KNN              ModelTypeID = "knn"
	SVR              ModelTypeID = "svr"
	XGBoost          ModelTypeID = "xgboost"
)

type Kind string

const (
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindSelect  Kind = "select"
)

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Spec describes one hyperparameter. Min, Max and Step are only meaningful
// for KindNumber; Options only for KindSelect.
type Spec struct {
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Default any      `json:"default"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Step    *float64 `json:"step,omitempty"`
	Options []Option `json:"options,omitempty"`
}

type TypeInfo struct {
	ID    ModelTypeID `json:"id"`
	Label string      `json:"label"`
}

func f(v float64) *float64 { return &v }

func number(name string, def, min, max float64, step ...float64) Spec {
	s := Spec{Name: name, Kind: KindNumber, Default: def, Min: f(min), Max: f(max)}
	if len(step) > 0 {
		s.Step = f(step[0])
	}
	return s
}

func choice(name, def string, opts ...Option) Spec {
	return Spec{Name: name, Kind: KindSelect, Default: def, Options: opts}
}

var types = []TypeInfo{
	{ID: LinearRegression, Label: "Linear Regression"},
	{ID: RandomForest, Label: "Random Forest"},
	{ID: KNN, Label: "K-Nearest Neighbors"},
	{ID: SVR, Label: "Support Vector Regression"},
	{ID: XGBoost, Label: "XGBoost"},
}

var registry = map[ModelTypeID][]Spec{
	LinearRegression: {
		{Name: "fit_intercept", Kind: KindBoolean, Default: true},
		number("n_jobs", -1, -1, 8),
	},
	RandomForest: {
		number("n_estimators", 100, 10, 1000),
		number("max_depth", 20, 1, 100),
		number("min_samples_split", 2, 2, 20),
		number("min_samples_leaf", 1, 1, 10),
		choice("max_features", "sqrt",
			Option{"Auto", "auto"}, Option{"Sqrt", "sqrt"}, Option{"Log2", "log2"}),
		number("random_state", 42, 0, 100),
	},
	KNN: {
		number("n_neighbors", 5, 1, 20),
		choice("weights", "uniform",
			Option{"Uniform", "uniform"}, Option{"Distance", "distance"}),
		choice("algorithm", "auto",
			Option{"Auto", "auto"}, Option{"Ball Tree", "ball_tree"},
			Option{"KD Tree", "kd_tree"}, Option{"Brute Force", "brute"}),
		number("leaf_size", 30, 1, 100),
	},
	SVR: {
		choice("kernel", "rbf",
			Option{"RBF", "rbf"}, Option{"Linear", "linear"},
			Option{"Polynomial", "poly"}, Option{"Sigmoid", "sigmoid"}),
		number("C", 1.0, 0.1, 10.0, 0.1),
		number("epsilon", 0.1, 0.01, 1.0, 0.01),
		{Name: "gamma", Kind: KindString, Default: "scale"},
	},
	XGBoost: {
		number("n_estimators", 100, 10, 1000),
		number("max_depth", 6, 1, 20),
		number("learning_rate", 0.3, 0.01, 1.0, 0.01),
		number("subsample", 1.0, 0.1, 1.0, 0.1),
		number("colsample_bytree", 1.0, 0.1, 1.0, 0.1),
	},
}

// Types lists the supported model types in display order.
func Types() []TypeInfo {
	out := make([]TypeInfo, len(types))
	copy(out, types)
	return out
}

// Parse maps a raw model type string to a known id.
func Parse(raw string) (ModelTypeID, bool) {
	id := ModelTypeID(strings.TrimSpace(raw))
	_, ok := registry[id]
	return id, ok
}

// Lookup returns a copy of the hyperparameter list for id. Unknown ids yield an
// empty, non-nil slice.
func Lookup(id ModelTypeID) []Spec {
	specs, ok := registry[id]
	if !ok {
		return []Spec{}
	}
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// Find returns the spec called name for model type id.
func Find(id ModelTypeID, name string) (Spec, bool) {
	for _, s := range registry[id] {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Defaults builds a fresh name->default map for id.
func Defaults(id ModelTypeID) map[string]any {
	specs := registry[id]
	out := make(map[string]any, len(specs))
	for _, s := range specs {
		out[s.Name] = s.Default
	}
	return out
}

// UIMin, UIMax and UIStep are the bounds a numeric input is rendered with;
// specs without explicit bounds fall back to 0, 100 and 1.
func (s Spec) UIMin() float64 {
	if s.Min == nil {
		return 0
	}
	return *s.Min
}

func (s Spec) UIMax() float64 {
	if s.Max == nil {
		return 100
	}
	return *s.Max
}

func (s Spec) UIStep() float64 {
	if s.Step == nil {
		return 1
	}
	return *s.Step
}

// Normalize coerces value into the spec's kind and checks it against bounds
// and options. Numbers may arrive as strings from form inputs.
func (s Spec) Normalize(value any) (any, error) {
	switch s.Kind {
	case KindBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "on":
				return true, nil
			case "false", "0", "off", "":
				return false, nil
			}
		}
		return nil, fmt.Errorf("%s: expected boolean, got %v", s.Name, value)
	case KindNumber:
		n, ok := toFloat(value)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%s: expected number, got %v", s.Name, value)
		}
		if s.Min != nil && n < *s.Min {
			return nil, fmt.Errorf("%s: %v is below minimum %v", s.Name, n, *s.Min)
		}
		if s.Max != nil && n > *s.Max {
			return nil, fmt.Errorf("%s: %v is above maximum %v", s.Name, n, *s.Max)
		}
		return n, nil
	case KindString:
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string, got %v", s.Name, value)
		}
		return str, nil
	case KindSelect:
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected one of %s", s.Name, s.optionValues())
		}
		for _, o := range s.Options {
			if o.Value == str {
				return str, nil
			}
		}
		return nil, fmt.Errorf("%s: %q is not one of %s", s.Name, str, s.optionValues())
	}
	return nil, fmt.Errorf("%s: unsupported kind %q", s.Name, s.Kind)
}

// Validate reports whether value is acceptable for s.
func (s Spec) Validate(value any) error {
	_, err := s.Normalize(value)
	return err
}

func (s Spec) optionValues() string {
	vals := make([]string, len(s.Options))
	for i, o := range s.Options {
		vals[i] = o.Value
	}
	return "[" + strings.Join(vals, ", ") + "]"
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		out, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return out, err == nil
	}
	return 0, false
}
