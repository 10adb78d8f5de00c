// Package trainer produces deterministic regression results for the
// reference training API. No model is fitted: predictions are the held-out
// targets perturbed by a noise level that depends on the model type and its
// hyperparameters, so the same request always yields the same metrics.
package trainer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/hyperparams"
	"github.com/yungbote/mlcompare/internal/observability"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

const splitSeed = 42

// noiseScale is the relative prediction error per model type.
var noiseScale = map[hyperparams.ModelTypeID]float64{
	hyperparams.LinearRegression: 0.6,
	hyperparams.RandomForest:     0.3,
	hyperparams.KNN:              0.45,
	hyperparams.SVR:              0.5,
	hyperparams.XGBoost:          0.25,
}

var importanceMethod = map[hyperparams.ModelTypeID]string{
	hyperparams.LinearRegression: "coefficients",
	hyperparams.RandomForest:     "feature_importances_",
	hyperparams.KNN:              "permutation",
	hyperparams.SVR:              "permutation",
	hyperparams.XGBoost:          "feature_importances_",
}

type Options struct {
	Concurrency     int
	TestFraction    float64
	MinTargetValues int
	Log             *logger.Logger
}

type Trainer struct {
	concurrency     int
	testFraction    float64
	minTargetValues int
	log             *logger.Logger
}

func New(opts Options) *Trainer {
	t := &Trainer{
		concurrency:     opts.Concurrency,
		testFraction:    opts.TestFraction,
		minTargetValues: opts.MinTargetValues,
		log:             opts.Log,
	}
	if t.concurrency <= 0 {
		t.concurrency = 1
	}
	if t.testFraction <= 0 || t.testFraction >= 1 {
		t.testFraction = 0.2
	}
	if t.minTargetValues <= 0 {
		t.minTargetValues = 50
	}
	if t.log == nil {
		t.log = logger.Nop()
	}
	t.log = t.log.With("service", "Trainer")
	return t
}

func (t *Trainer) MinTargetValues() int { return t.minTargetValues }

// Job is one (model config, target column) pair.
type Job struct {
	Config client.ModelConfig
	Target string
}

type Outcome struct {
	Metrics           client.Metrics
	FeatureImportance map[string]float64
	ScatterData       []client.ScatterPoint
	ModelInfo         map[string]any
}

// RunAll trains every job against table with bounded parallelism. Outcomes
// are index-aligned with jobs; the first failure cancels the rest.
func (t *Trainer) RunAll(ctx context.Context, table *Table, jobs []Job) ([]Outcome, error) {
	out := make([]Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := t.Run(table, job)
			if err != nil {
				return err
			}
			out[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Trainer) Run(table *Table, job Job) (res *Outcome, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.Current().ObserveTrainingRun(job.Config.ModelType, status, time.Since(start))
	}()

	modelType, ok := hyperparams.Parse(job.Config.ModelType)
	if !ok {
		return nil, fmt.Errorf("Unsupported model type: %s", job.Config.ModelType)
	}
	ti := table.Index(job.Target)
	if ti < 0 {
		return nil, fmt.Errorf("Target columns not found in dataset: ['%s']", job.Target)
	}

	var y []float64
	for _, row := range table.Rows {
		cell := row[ti]
		if isMissing(cell) {
			continue
		}
		v, perr := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if perr != nil {
			return nil, fmt.Errorf("could not convert string to float: '%s'", cell)
		}
		y = append(y, v)
	}
	if len(y) < t.minTargetValues {
		return nil, fmt.Errorf("Insufficient data after cleaning. Only %d samples available.", len(y))
	}

	train, test := split(y, t.testFraction)
	params := EffectiveParams(modelType, job.Config.Hyperparameters)
	pred := predict(modelType, params, job.Target, train, test)

	features := make([]string, 0, len(table.Header)-1)
	numeric := []string{}
	categorical := []string{}
	for _, h := range table.Header {
		if h == job.Target {
			continue
		}
		features = append(features, h)
		if table.IsNumeric(h) {
			numeric = append(numeric, h)
		} else {
			categorical = append(categorical, h)
		}
	}

	scatter := make([]client.ScatterPoint, len(test))
	for i := range test {
		scatter[i] = client.ScatterPoint{Actual: test[i], Predicted: pred[i]}
	}

	missing := table.MissingCounts()
	res = &Outcome{
		Metrics:           Evaluate(test, pred),
		FeatureImportance: FeatureImportance(modelType, features),
		ScatterData:       scatter,
		ModelInfo: map[string]any{
			"n_features":                len(features),
			"n_samples_train":           len(train),
			"n_samples_test":            len(test),
			"feature_names":             features,
			"numeric_features":          numeric,
			"categorical_features":      categorical,
			"missing_values":            missing,
			"total_samples":             len(table.Rows),
			"samples_after_cleaning":    len(y),
			"dropped_samples":           len(table.Rows) - len(y),
			"feature_importance_method": importanceMethod[modelType],
			"model_type":                string(modelType),
		},
	}
	t.log.Debug("training run complete",
		"model_type", modelType,
		"target", job.Target,
		"r2_score", res.Metrics.R2Score,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// split shuffles with a fixed seed and holds out ceil(n*frac) values.
func split(y []float64, frac float64) (train, test []float64) {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(splitSeed))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nTest := int(math.Ceil(float64(len(y)) * frac))
	if nTest < 1 {
		nTest = 1
	}
	if nTest >= len(y) {
		nTest = len(y) - 1
	}
	for i, k := range idx {
		if i < nTest {
			test = append(test, y[k])
		} else {
			train = append(train, y[k])
		}
	}
	return train, test
}

func predict(modelType hyperparams.ModelTypeID, params map[string]any, target string, train, test []float64) []float64 {
	mean, std := meanStd(train)
	if std == 0 {
		std = 1
	}
	seed := paramsKey(modelType, params) + "|" + target
	// hyperparameters move the noise level by up to +/-10%
	scale := noiseScale[modelType] * (0.9 + 0.2*unit(seed))
	shrink := scale / 2

	out := make([]float64, len(test))
	for i, actual := range test {
		noise := 2*unit(seed+"|"+strconv.Itoa(i)) - 1
		out[i] = actual*(1-shrink) + mean*shrink + scale*std*noise
	}
	return out
}

// Evaluate computes R², MSE, MAE and RMSE of pred against actual.
func Evaluate(actual, pred []float64) client.Metrics {
	n := float64(len(actual))
	if n == 0 {
		return client.Metrics{}
	}
	mean, _ := meanStd(actual)
	var ssRes, ssTot, absErr float64
	for i := range actual {
		d := actual[i] - pred[i]
		ssRes += d * d
		absErr += math.Abs(d)
		ssTot += (actual[i] - mean) * (actual[i] - mean)
	}
	r2 := 0.0
	switch {
	case ssTot > 0:
		r2 = 1 - ssRes/ssTot
	case ssRes == 0:
		r2 = 1
	}
	mse := ssRes / n
	return client.Metrics{
		R2Score: r2,
		MSE:     mse,
		MAE:     absErr / n,
		RMSE:    math.Sqrt(mse),
	}
}

// FeatureImportance assigns each feature a stable weight derived from the
// model type and feature name. Weights sum to 1.
func FeatureImportance(modelType hyperparams.ModelTypeID, features []string) map[string]float64 {
	out := make(map[string]float64, len(features))
	if len(features) == 0 {
		return out
	}
	total := 0.0
	for _, f := range features {
		w := 0.05 + unit(string(modelType)+"|"+f)
		out[f] = w
		total += w
	}
	for f, w := range out {
		out[f] = w / total
	}
	return out
}

func meanStd(v []float64) (mean, std float64) {
	if len(v) == 0 {
		return 0, 0
	}
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	for _, x := range v {
		std += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(std / float64(len(v)))
}

// unit maps s to [0,1) deterministically.
func unit(s string) float64 {
	sum := sha256.Sum256([]byte(s))
	return float64(binary.BigEndian.Uint64(sum[:8])>>11) / float64(uint64(1)<<53)
}

func paramsKey(modelType hyperparams.ModelTypeID, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(string(modelType))
	for _, k := range keys {
		v, _ := json.Marshal(params[k])
		b.WriteString("|" + k + "=" + string(v))
	}
	return b.String()
}
