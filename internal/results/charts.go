package results

import (
	"fmt"
	"sort"

	"github.com/yungbote/mlcompare/internal/client"
)

type RGB struct{ R, G, B int }

func (c RGB) RGBA(alpha float64) string {
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", c.R, c.G, c.B, alpha)
}

var palette = [...]RGB{
	{54, 162, 235},
	{255, 99, 132},
	{75, 192, 192},
	{255, 159, 64},
	{153, 102, 255},
	{255, 205, 86},
	{201, 203, 207},
	{0, 150, 136},
	{233, 30, 99},
	{156, 39, 176},
}

// Color returns the palette entry for index i, cycling past the end.
func Color(i int) RGB {
	n := len(palette)
	return palette[((i%n)+n)%n]
}

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor string    `json:"backgroundColor"`
	BorderColor     string    `json:"borderColor"`
	BorderWidth     int       `json:"borderWidth"`
}

type Chart struct {
	Type      string    `json:"type"`
	IndexAxis string    `json:"indexAxis,omitempty"`
	Labels    []string  `json:"labels"`
	Datasets  []Dataset `json:"datasets"`
}

// Label is how a model is named on chart axes.
func Label(m client.TrainedModel) string {
	return fmt.Sprintf("%s (%s)", m.Kind(), m.Dataset)
}

// BarChart groups R² and RMSE per model.
func BarChart(models []client.TrainedModel) Chart {
	labels := make([]string, len(models))
	r2 := make([]float64, len(models))
	rmse := make([]float64, len(models))
	for i, m := range models {
		labels[i] = Label(m)
		r2[i] = m.Metrics.R2Score
		rmse[i] = m.Metrics.RMSE
	}
	return Chart{
		Type:   "bar",
		Labels: labels,
		Datasets: []Dataset{
			{Label: "R² Score", Data: r2, BackgroundColor: Color(0).RGBA(0.5), BorderColor: Color(0).RGBA(1), BorderWidth: 1},
			{Label: "RMSE", Data: rmse, BackgroundColor: Color(1).RGBA(0.5), BorderColor: Color(1).RGBA(1), BorderWidth: 1},
		},
	}
}

var RadarAxes = []string{"R² Score", "MSE", "MAE", "RMSE"}

// RadarChart draws one polygon per model over the four metrics.
func RadarChart(models []client.TrainedModel) Chart {
	sets := make([]Dataset, len(models))
	for i, m := range models {
		c := Color(i)
		sets[i] = Dataset{
			Label:           Label(m),
			Data:            []float64{m.Metrics.R2Score, m.Metrics.MSE, m.Metrics.MAE, m.Metrics.RMSE},
			BackgroundColor: c.RGBA(0.2),
			BorderColor:     c.RGBA(1),
			BorderWidth:     2,
		}
	}
	return Chart{Type: "radar", Labels: append([]string{}, RadarAxes...), Datasets: sets}
}

// FeatureImportanceChart is a horizontal bar of one model's importances,
// largest first with ties broken by feature name.
func FeatureImportanceChart(m client.TrainedModel) Chart {
	names := make([]string, 0, len(m.FeatureImportance))
	for k := range m.FeatureImportance {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := m.FeatureImportance[names[i]], m.FeatureImportance[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	data := make([]float64, len(names))
	for i, n := range names {
		data[i] = m.FeatureImportance[n]
	}
	c := Color(2)
	return Chart{
		Type:      "bar",
		IndexAxis: "y",
		Labels:    names,
		Datasets: []Dataset{{
			Label:           "Feature Importance",
			Data:            data,
			BackgroundColor: c.RGBA(0.5),
			BorderColor:     c.RGBA(1),
			BorderWidth:     1,
		}},
	}
}
