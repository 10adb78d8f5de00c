// Package results filters, sorts and projects trained models for the list,
// comparison and details views.
package results

import (
	"sort"
	"strings"
	"unicode"

	"github.com/yungbote/mlcompare/internal/client"
)

// Filter keeps models whose model type or dataset contains term,
// case-insensitively. The initials of the model type also match, so "rf"
// finds random_forest. A blank term keeps everything.
func Filter(models []client.TrainedModel, term string) []client.TrainedModel {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]client.TrainedModel, 0, len(models))
	for _, m := range models {
		if term == "" || matches(m, term) {
			out = append(out, m)
		}
	}
	return out
}

func matches(m client.TrainedModel, term string) bool {
	kind := strings.ToLower(m.Kind())
	if strings.Contains(kind, term) ||
		strings.Contains(strings.ToLower(m.Model), term) ||
		strings.Contains(strings.ToLower(m.Dataset), term) {
		return true
	}
	return strings.Contains(initials(kind), term)
}

func initials(s string) string {
	var b strings.Builder
	prevSep := true
	for _, r := range s {
		sep := r == '_' || r == '-' || unicode.IsSpace(r)
		if !sep && prevSep {
			b.WriteRune(r)
		}
		prevSep = sep
	}
	return b.String()
}

// FilterExact applies the comparison view's dropdowns. Empty values match all.
func FilterExact(models []client.TrainedModel, dataset, modelType string) []client.TrainedModel {
	out := make([]client.TrainedModel, 0, len(models))
	for _, m := range models {
		if dataset != "" && m.Dataset != dataset {
			continue
		}
		if modelType != "" && m.Kind() != modelType {
			continue
		}
		out = append(out, m)
	}
	return out
}

// UniqueDatasets returns dataset names in first-seen order.
func UniqueDatasets(models []client.TrainedModel) []string {
	return unique(models, func(m client.TrainedModel) string { return m.Dataset })
}

// UniqueModelTypes returns model types in first-seen order.
func UniqueModelTypes(models []client.TrainedModel) []string {
	return unique(models, client.TrainedModel.Kind)
}

func unique(models []client.TrainedModel, key func(client.TrainedModel) string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range models {
		k := key(m)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

type SortKey string

const (
	SortByID        SortKey = "id"
	SortByDataset   SortKey = "dataset"
	SortByModel     SortKey = "model"
	SortByCreatedAt SortKey = "created_at"
)

var SortKeys = []SortKey{SortByID, SortByDataset, SortByModel, SortByCreatedAt}

func ParseSortKey(raw string) (SortKey, bool) {
	k := SortKey(strings.TrimSpace(raw))
	for _, known := range SortKeys {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Sort returns a copy of models ordered ascending by key. Ties keep their
// input order. Unknown keys leave the order unchanged.
func Sort(models []client.TrainedModel, key SortKey) []client.TrainedModel {
	out := make([]client.TrainedModel, len(models))
	copy(out, models)
	var less func(a, b client.TrainedModel) bool
	switch key {
	case SortByID:
		less = lessID
	case SortByDataset:
		less = func(a, b client.TrainedModel) bool { return a.Dataset < b.Dataset }
	case SortByModel:
		less = func(a, b client.TrainedModel) bool { return a.Kind() < b.Kind() }
	case SortByCreatedAt:
		less = func(a, b client.TrainedModel) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Numeric ids compare as numbers and sort before non-numeric ones.
func lessID(a, b client.TrainedModel) bool {
	ai, aok := a.ID.Int()
	bi, bok := b.ID.Int()
	switch {
	case aok && bok:
		return ai < bi
	case aok != bok:
		return aok
	default:
		return a.ID < b.ID
	}
}
