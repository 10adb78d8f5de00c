package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/mlcompare/internal/platform/apierr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/api/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestListTrainingResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/results/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `[
			{"id": 7, "dataset": "housing.csv", "model": "random_forest Model", "model_type": "random_forest",
			 "metrics": {"r2_score": 0.91, "mse": 1.5, "mae": 0.9, "rmse": 1.22},
			 "feature_importance": {"rooms": 0.7, "age": 0.3},
			 "created_at": "2024-03-01T10:00:00.123456Z"},
			{"id": "b-2", "dataset": "cars.csv", "model": "knn Model",
			 "metrics": {"r2_score": 0.5, "mse": 3, "mae": 1, "rmse": 1.73},
			 "created_at": "2024-03-02T10:00:00+00:00"}
		]`)
	})

	got, err := c.ListTrainingResults(context.Background())
	if err != nil {
		t.Fatalf("ListTrainingResults: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d want 2", len(got))
	}
	if got[0].ID != "7" || got[1].ID != "b-2" {
		t.Fatalf("ids=%q,%q", got[0].ID, got[1].ID)
	}
	if got[0].Kind() != "random_forest" || got[1].Kind() != "knn Model" {
		t.Fatalf("kinds=%q,%q", got[0].Kind(), got[1].Kind())
	}
	if got[0].Metrics.R2Score != 0.91 || got[0].FeatureImportance["rooms"] != 0.7 {
		t.Fatalf("unexpected first result: %+v", got[0])
	}
	if !got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Fatalf("created_at not parsed: %v %v", got[0].CreatedAt, got[1].CreatedAt)
	}
}

func TestGetResultDetailsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Resource not found"}`)
	})

	_, err := c.GetResultDetails(context.Background(), "42")
	if apierr.KindOf(err) != apierr.KindNotFound {
		t.Fatalf("kind=%q err=%v", apierr.KindOf(err), err)
	}
	if err.Error() != apierr.MsgNotFound {
		t.Fatalf("message=%q", err.Error())
	}
}

func TestServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: base, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = c.ListDatasets(context.Background())
	if apierr.KindOf(err) != apierr.KindServerUnreachable {
		t.Fatalf("kind=%q err=%v", apierr.KindOf(err), err)
	}
	if err.Error() != apierr.MsgServerUnreachable {
		t.Fatalf("message=%q", err.Error())
	}
}

func TestGenericErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"error string", `{"error":"Only CSV files are supported"}`, "Only CSV files are supported"},
		{"error envelope", `{"error":{"message":"bad target","code":"invalid"}}`, "bad target"},
		{"message field", `{"message":"nope"}`, "nope"},
		{"fallback", `<html>oops</html>`, "Failed to train models"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.SubmitTraining(context.Background(), TrainingRequest{FileName: "a.csv", File: []byte("a\n1")})
			if apierr.KindOf(err) != apierr.KindGeneric {
				t.Fatalf("kind=%q err=%v", apierr.KindOf(err), err)
			}
			if err.Error() != tc.want {
				t.Fatalf("message=%q want %q", err.Error(), tc.want)
			}
			var ae *apierr.Error
			if !errors.As(err, &ae) || ae.Status != http.StatusBadRequest {
				t.Fatalf("status not preserved: %+v", ae)
			}
		})
	}
}

func TestSubmitTrainingMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/train/" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			b, _ := io.ReadAll(f)
			if hdr.Filename != "data.csv" || string(b) != "a,b,c\n1,2,3" {
				t.Errorf("file=%q content=%q", hdr.Filename, b)
			}
		}
		var models []ModelConfig
		if err := json.Unmarshal([]byte(r.FormValue("models")), &models); err != nil {
			t.Errorf("models: %v", err)
		}
		if len(models) != 1 || models[0].ModelType != "knn" || models[0].Hyperparameters["n_neighbors"] != 5.0 {
			t.Errorf("models=%+v", models)
		}
		var targets []string
		if err := json.Unmarshal([]byte(r.FormValue("target_columns")), &targets); err != nil {
			t.Errorf("targets: %v", err)
		}
		if strings.Join(targets, ",") != "c" {
			t.Errorf("targets=%v", targets)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":1,"dataset":"data.csv","model":"knn Model","target":"c","metrics":{"r2_score":0.8,"mse":1,"mae":1,"rmse":1}}]`)
	})

	resp, err := c.SubmitTraining(context.Background(), TrainingRequest{
		FileName:      "data.csv",
		File:          []byte("a,b,c\n1,2,3"),
		Models:        []ModelConfig{{Name: "knn Model", ModelType: "knn", Hyperparameters: map[string]any{"n_neighbors": 5}}},
		TargetColumns: []string{"c"},
	})
	if err != nil {
		t.Fatalf("SubmitTraining: %v", err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].Target != "c" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTrainingResponseShapes(t *testing.T) {
	var obj TrainingResponse
	if err := json.Unmarshal([]byte(`{"message":"ok","results":[{"id":"x","metrics":{"r2_score":1}}]}`), &obj); err != nil {
		t.Fatalf("object: %v", err)
	}
	if obj.Message != "ok" || len(obj.Runs) != 1 || obj.Runs[0].ID != "x" {
		t.Fatalf("object=%+v", obj)
	}
	var single TrainingResponse
	if err := json.Unmarshal([]byte(`{"id":3,"metrics":{"rmse":2}}`), &single); err != nil {
		t.Fatalf("single: %v", err)
	}
	if len(single.Runs) != 1 || single.Runs[0].Metrics.RMSE != 2 {
		t.Fatalf("single=%+v", single)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: ""}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
	if _, err := New(Options{BaseURL: "localhost"}); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

type deadlineRecorder struct {
	hasDeadline bool
}

func (d *deadlineRecorder) RoundTrip(r *http.Request) (*http.Response, error) {
	_, d.hasDeadline = r.Context().Deadline()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`[]`)),
		Request:    r,
	}, nil
}

func TestTimeoutOnlyWhenConfigured(t *testing.T) {
	for _, tc := range []struct {
		timeout time.Duration
		want    bool
	}{
		{0, false},
		{-time.Second, false},
		{time.Minute, true},
	} {
		rt := &deadlineRecorder{}
		c, err := New(Options{BaseURL: "http://trainer.test/api", Timeout: tc.timeout, HTTPClient: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		if _, err := c.ListModels(context.Background()); err != nil {
			t.Fatalf("ListModels: %v", err)
		}
		if rt.hasDeadline != tc.want {
			t.Fatalf("timeout=%v: deadline=%v want %v", tc.timeout, rt.hasDeadline, tc.want)
		}
	}
}

func TestCallerCancellationIsNotAServerFault(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListTrainingResults(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if kind := apierr.KindOf(err); kind != "" {
		t.Fatalf("kind=%q, cancellation must not be reported as %s", kind, kind)
	}
}
