package trainer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/hyperparams"
)

func housingCSV(rows int) string {
	var b strings.Builder
	b.WriteString("rooms,city,price,age\n")
	for i := 0; i < rows; i++ {
		city := []string{"north", "south", "east"}[i%3]
		age := fmt.Sprint(i % 40)
		if i%10 == 0 {
			age = ""
		}
		fmt.Fprintf(&b, "%d,%s,%d,%s\n", 1+i%6, city, 100000+i*1500, age)
	}
	return b.String()
}

func mustTable(t *testing.T, s string) *Table {
	t.Helper()
	tbl, err := ParseCSV(strings.NewReader(s))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	return tbl
}

func TestParseCSV(t *testing.T) {
	tbl := mustTable(t, "\ufeffa, b ,c\n1,2,3\n4,,NaN\n\n7,8\n")
	if strings.Join(tbl.Header, "|") != "a|b|c" {
		t.Fatalf("header=%q", tbl.Header)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows=%d", len(tbl.Rows))
	}
	if got := tbl.NonNullCount("c"); got != 1 {
		t.Fatalf("non-null c=%d", got)
	}
	if got := tbl.Missing([]string{"b", "zzz"}); len(got) != 1 || got[0] != "zzz" {
		t.Fatalf("missing=%v", got)
	}
	if !tbl.IsNumeric("a") {
		t.Fatalf("a should be numeric")
	}

	if _, err := ParseCSV(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty file")
	}
	if _, err := ParseCSV(strings.NewReader("a,b\n1,2,3\n")); err == nil {
		t.Fatalf("expected error for ragged row")
	}
}

func TestEvaluate(t *testing.T) {
	m := Evaluate([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4})
	if m.R2Score != 1 || m.MSE != 0 || m.MAE != 0 || m.RMSE != 0 {
		t.Fatalf("perfect fit: %+v", m)
	}
	m = Evaluate([]float64{1, 2, 3}, []float64{2, 2, 2})
	// ssRes = 1+0+1, ssTot = 1+0+1
	if m.R2Score != 0 || math.Abs(m.MSE-2.0/3) > 1e-12 || math.Abs(m.MAE-2.0/3) > 1e-12 {
		t.Fatalf("mean predictor: %+v", m)
	}
	if math.Abs(m.RMSE-math.Sqrt(2.0/3)) > 1e-12 {
		t.Fatalf("rmse=%v", m.RMSE)
	}
}

func TestFeatureImportanceSumsToOne(t *testing.T) {
	fi := FeatureImportance(hyperparams.RandomForest, []string{"rooms", "city", "age"})
	total := 0.0
	for _, v := range fi {
		if v <= 0 {
			t.Fatalf("non-positive weight: %v", fi)
		}
		total += v
	}
	if math.Abs(total-1) > 1e-9 {
		t.Fatalf("sum=%v", total)
	}
	again := FeatureImportance(hyperparams.RandomForest, []string{"age", "rooms", "city"})
	for k, v := range fi {
		if math.Abs(again[k]-v) > 1e-12 {
			t.Fatalf("unstable weight for %s", k)
		}
	}
	if len(FeatureImportance(hyperparams.KNN, nil)) != 0 {
		t.Fatalf("expected empty map")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	tbl := mustTable(t, housingCSV(80))
	tr := New(Options{Concurrency: 2})
	job := Job{
		Config: client.ModelConfig{Name: "xgboost Model", ModelType: "xgboost", Hyperparameters: hyperparams.Defaults(hyperparams.XGBoost)},
		Target: "price",
	}
	a, err := tr.Run(tbl, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := tr.Run(tbl, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Metrics != b.Metrics {
		t.Fatalf("metrics differ: %+v vs %+v", a.Metrics, b.Metrics)
	}
	if got := a.ModelInfo["n_samples_test"]; got != 16 {
		t.Fatalf("n_samples_test=%v", got)
	}
	if len(a.ScatterData) != 16 {
		t.Fatalf("scatter=%d", len(a.ScatterData))
	}
	if _, ok := a.FeatureImportance["price"]; ok {
		t.Fatalf("target must not appear in feature importance")
	}
	if a.Metrics.R2Score <= 0 || a.Metrics.R2Score > 1 {
		t.Fatalf("r2 out of range: %v", a.Metrics.R2Score)
	}
	if cats := a.ModelInfo["categorical_features"].([]string); len(cats) != 1 || cats[0] != "city" {
		t.Fatalf("categorical=%v", cats)
	}
}

func TestRunRanksModelTypes(t *testing.T) {
	tbl := mustTable(t, housingCSV(200))
	tr := New(Options{})
	run := func(id hyperparams.ModelTypeID) client.Metrics {
		res, err := tr.Run(tbl, Job{Config: client.ModelConfig{Name: "m", ModelType: string(id), Hyperparameters: hyperparams.Defaults(id)}, Target: "price"})
		if err != nil {
			t.Fatalf("Run %s: %v", id, err)
		}
		return res.Metrics
	}
	if xgb, lr := run(hyperparams.XGBoost), run(hyperparams.LinearRegression); xgb.RMSE >= lr.RMSE {
		t.Fatalf("expected xgboost to beat linear regression: %v vs %v", xgb.RMSE, lr.RMSE)
	}
}

func TestRunErrors(t *testing.T) {
	tr := New(Options{})
	cfg := client.ModelConfig{Name: "m", ModelType: "knn"}

	if _, err := tr.Run(mustTable(t, housingCSV(30)), Job{Config: cfg, Target: "price"}); err == nil || !strings.Contains(err.Error(), "Insufficient data") {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	if _, err := tr.Run(mustTable(t, housingCSV(60)), Job{Config: cfg, Target: "city"}); err == nil {
		t.Fatalf("expected non-numeric target error")
	}
	if _, err := tr.Run(mustTable(t, housingCSV(60)), Job{Config: client.ModelConfig{ModelType: "lasso"}, Target: "price"}); err == nil {
		t.Fatalf("expected unsupported model type")
	}
}

func TestRunAll(t *testing.T) {
	tbl := mustTable(t, housingCSV(60))
	tr := New(Options{Concurrency: 3})
	var jobs []Job
	for _, ti := range hyperparams.Types() {
		for _, target := range []string{"price", "rooms"} {
			jobs = append(jobs, Job{Config: client.ModelConfig{Name: string(ti.ID), ModelType: string(ti.ID)}, Target: target})
		}
	}
	out, err := tr.RunAll(context.Background(), tbl, jobs)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(out) != len(jobs) {
		t.Fatalf("outcomes=%d jobs=%d", len(out), len(jobs))
	}
	for i, o := range out {
		if o.ModelInfo["model_type"] != jobs[i].Config.ModelType {
			t.Fatalf("outcome %d misaligned: %v", i, o.ModelInfo["model_type"])
		}
	}

	jobs = append(jobs, Job{Config: client.ModelConfig{ModelType: "knn"}, Target: "city"})
	if _, err := tr.RunAll(context.Background(), tbl, jobs); err == nil {
		t.Fatalf("expected failure to propagate")
	}
}

func TestValidateModelConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  client.ModelConfig
		ok   bool
	}{
		{"defaults", client.ModelConfig{Name: "a", ModelType: "svr", Hyperparameters: hyperparams.Defaults(hyperparams.SVR)}, true},
		{"normalize extra", client.ModelConfig{Name: "a", ModelType: "linear_regression", Hyperparameters: map[string]any{"normalize": true}}, true},
		{"n_jobs extra", client.ModelConfig{Name: "a", ModelType: "random_forest", Hyperparameters: map[string]any{"n_jobs": -1}}, true},
		{"null value", client.ModelConfig{Name: "a", ModelType: "random_forest", Hyperparameters: map[string]any{"max_depth": nil}}, true},
		{"normalize on knn", client.ModelConfig{Name: "a", ModelType: "knn", Hyperparameters: map[string]any{"normalize": true}}, false},
		{"unknown type", client.ModelConfig{Name: "a", ModelType: "lasso"}, false},
		{"blank name", client.ModelConfig{ModelType: "knn"}, false},
		{"out of range", client.ModelConfig{Name: "a", ModelType: "knn", Hyperparameters: map[string]any{"n_neighbors": 500.0}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateModelConfig(tc.cfg)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestEffectiveParamsDropsNormalize(t *testing.T) {
	got := EffectiveParams(hyperparams.LinearRegression, map[string]any{"normalize": true, "fit_intercept": false})
	if _, ok := got["normalize"]; ok || len(got) != 1 {
		t.Fatalf("got %v", got)
	}
}
